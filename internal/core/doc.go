// Package core implements the cleaning service use cases independent of
// any transport: upload, run, chat, session lookup and reset.
//
// # Flow
//
//  1. [Service.Upload] parses each file with the table readers, assesses
//     it and stores the readable ones in a new session together with a
//     suggested config.
//  2. The caller edits the config directly or through [Service.Chat].
//  3. [Service.Run] validates the config, applies the severity gate and
//     runs the cleaning pipeline over every table of the session.
//  4. [WriteArchive] packages cleaned tables, splits and reports as a ZIP.
//
// # Concurrency
//
// Uploads and runs share one [Limiter]. Sessions live in a
// [session.Store]; [Service.StartSessionSweeper] expires idle ones.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with support codes
// by [MapError]:
//
//   - SES: session lookups
//   - CFG: cleaning configuration and chat commands
//   - FILE: uploads and parsing
//   - RUN: severity gate, cancellation and timeouts
//   - RATE: limiter saturation and rate limiting
//
// # Audit
//
// Uploads, runs, resets and expiries are recorded through an
// [audit.Recorder]. Audit failures are logged and never fail a request.
package core
