// Package cleaning scores tabular data quality and runs the config-driven
// cleaning pipeline.
//
// # Stages
//
// A run applies seven stages in a fixed order. Each one is a pure function
// from a table and its slice of the [Config] to a new table and a
// [StageLog]:
//
//  1. [ApplyDtypes] coerces columns with the lenient table converters
//  2. [HandleMissing] drops and fills missing cells
//  3. [CleanText] lowercases, strips and removes a pattern
//  4. [DropDuplicates] removes repeated rows
//  5. [RemoveOutliers] removes rows with extreme scores
//  6. [SortRows] orders rows stably
//  7. [SplitRows] partitions the result into train, val and test
//
// Stages only log a change when data actually moved, so running a cleaned
// table through the same config again produces no new changes.
//
// # Assessment
//
// [Assess] counts missing cells (nulls and blank strings) and duplicate
// rows and expresses them as a percentage of all cells. The percentage is
// bucketed into a [Severity] by [Thresholds].
package cleaning
