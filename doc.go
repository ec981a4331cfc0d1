/*

Package tabular implements a lazy transformation engine for tables of
typed values.

Overview::

A table (a Raster) is a grid of Values: integers, doubles, booleans,
strings, dates, the empty cell and the invalid marker. Transformations
never run against the table directly. Instead they are described as a
graph of Data nodes, each node wrapping its upstream with one
operation:

  data := tabular.FromRaster(raster).
      Filter(formula.Parse("=[@Size] < 5000", locale)).
      Sort(formula.Parse("=[@Name]", locale), false).
      Limit(20)

Building the graph costs nothing. The work happens when a consumer
asks the final node to materialize:

  data.Raster(job, func(result *tabular.Raster, err error) { ... })

and each node computes at most once: repeated materializations of the
same Data reuse the memoized result, while Clone() hands out an
independent copy that recomputes from scratch.

Every materialization runs under a Job, which carries cooperative
cancellation and optional progress reporting. Scanning operations
check the job periodically; a cancelled scan returns an empty table
that still carries the expected columns, as a success rather than an
error.

The operation set covers column selection, filtering, sorting,
limit/offset windows, transposition, duplicate removal, random
sampling, pivoting, grouped aggregation, union and join. Joins over an
equality of one sibling side and one foreign side ([@A] = [#B]) use a
parallel hash join; any other predicate falls back to a nested loop.

Row predicates, sort keys and aggregation inputs are formulas parsed
by the formula subpackage, a spreadsheet style expression language
with locale configurable number and argument separators.

Consumers that want rows in batches rather than a whole table at once
use a Stream, a forward cursor over a Data with a configurable fetch
size. Writable tables additionally implement Sink, accepting
mutations (insert, edit, update, column changes) through a uniform
interface.

*/
package tabular
