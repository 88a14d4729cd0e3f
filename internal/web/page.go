package web

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/csvclean/internal/cleaning"
)

// IndexPage renders the upload, configure and run page. It drives the
// JSON API from an inline script.
func IndexPage(maxFileSize int64, th cleaning.Thresholds) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		limit := templ.EscapeString(formatBytes(maxFileSize))
		tiers := templ.EscapeString(fmt.Sprintf("CLEAN 0%% · GOOD ≤ %g%% · WARNING ≤ %g%% · CRITICAL above", th.Low, th.Mid))

		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, pageBody, limit, tiers); err != nil {
			return err
		}
		_, err := io.WriteString(w, pageScript)
		return err
	})
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.0f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>CSV Cleaner</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; color: #1f2937; }
h1 { font-size: 1.5rem; }
section { border: 1px solid #e5e7eb; border-radius: 6px; padding: 1rem; margin-bottom: 1rem; }
table { border-collapse: collapse; width: 100%; font-size: .9rem; }
th, td { text-align: left; padding: .25rem .5rem; border-bottom: 1px solid #f3f4f6; }
textarea { width: 100%; min-height: 16rem; font-family: ui-monospace, monospace; font-size: .85rem; }
.sev-CLEAN { color: #047857; } .sev-GOOD { color: #2563eb; } .sev-WARNING { color: #b45309; } .sev-CRITICAL { color: #b91c1c; font-weight: 600; }
.error { color: #b91c1c; white-space: pre-wrap; }
.muted { color: #6b7280; font-size: .85rem; }
</style>
</head>
`

const pageBody = `<body>
<h1>CSV Cleaner</h1>
<section>
<form id="upload-form">
<input type="file" name="files" accept=".csv,.tsv,.txt,.xlsx" multiple required>
<button type="submit">Upload</button>
<p class="muted">Up to %s per file. Tiers: %s.</p>
</form>
</section>
<section id="assessment" hidden>
<table><thead><tr><th>File</th><th>Dirty score</th><th>Severity</th><th>Missing</th><th>Duplicates</th><th>Rows</th><th>Columns</th></tr></thead><tbody id="stats"></tbody></table>
<p id="skipped" class="muted"></p>
</section>
<section id="configure" hidden>
<label>Cleaning config (JSON)<textarea id="config"></textarea></label>
<form id="chat-form"><input id="chat" size="60" placeholder="e.g. fill missing age with median"><button type="submit">Apply</button> <span id="reply" class="muted"></span></form>
<p>
<label><input type="checkbox" id="override"> Run even if a file is CRITICAL</label>
<select id="format"><option value="csv">CSV</option><option value="xlsx">Excel</option></select>
<button id="run">Clean and download</button>
</p>
</section>
<p id="error" class="error"></p>
`

const pageScript = `<script>
let sessionID = null;
const $ = (id) => document.getElementById(id);

function showError(body) {
  let text = body.detail || "Request failed";
  if (body.code) text += " (" + body.code + ")";
  if (body.action) text += "\n" + body.action;
  (body.errors || []).forEach((e) => { text += "\n  " + e.field + ": " + e.message; });
  $("error").textContent = text;
}

function config() {
  const raw = $("config").value.trim();
  return raw ? JSON.parse(raw) : null;
}

$("upload-form").addEventListener("submit", async (ev) => {
  ev.preventDefault();
  $("error").textContent = "";
  const res = await fetch("/upload_csv", { method: "POST", body: new FormData(ev.target) });
  const body = await res.json();
  if (!res.ok) return showError(body);

  sessionID = body.session_id;
  $("stats").replaceChildren(...body.file_stats.map((f) => {
    const tr = document.createElement("tr");
    [f.filename, f.dirty_score.toFixed(2) + "%", f.severity, f.missing_count, f.duplicate_rows, f.rows, f.columns].forEach((v, i) => {
      const td = document.createElement("td");
      td.textContent = v;
      if (i === 2) td.className = "sev-" + v;
      tr.appendChild(td);
    });
    return tr;
  }));
  $("skipped").textContent = body.skipped.map((s) => "Skipped " + s.filename + ": " + s.reason).join("\n");
  $("config").value = JSON.stringify(body.suggested_config, null, 2);
  $("assessment").hidden = false;
  $("configure").hidden = false;
});

$("chat-form").addEventListener("submit", async (ev) => {
  ev.preventDefault();
  const res = await fetch("/chat", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ message: $("chat").value, config: config() }),
  });
  const body = await res.json();
  if (!res.ok) return showError(body);
  $("reply").textContent = body.reply;
  $("config").value = JSON.stringify(body.config, null, 2);
});

$("run").addEventListener("click", async () => {
  $("error").textContent = "";
  const res = await fetch("/run_cleaning", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({
      session_id: sessionID,
      config: config(),
      override_warnings: $("override").checked,
      output_format: $("format").value,
    }),
  });
  if (!res.ok) return showError(await res.json());

  const url = URL.createObjectURL(await res.blob());
  const a = document.createElement("a");
  a.href = url;
  a.download = "cleaned_files.zip";
  a.click();
  URL.revokeObjectURL(url);
  if (res.headers.get("X-Dataset-Dirty") === "true") {
    $("error").textContent = "Some files still have issues; see the reports in the archive.";
  }
  sessionID = null;
  $("configure").hidden = true;
});
</script>
</body>
</html>
`
