/*
Package compiler drives compilation of op-tree listings.

Process of compilation

Listing Text ->
	parse ->
Listing Syntax (ast) ->
	assemble (build, fold) ->
Op Tree (one per sub) ->
	pre-fixups ->
	linearize ->
Execution Chain ->
	peephole (multideref, padrange, bounds, short-circuit) ->
	finalize ->
Finished Unit ->
	run

Each sub is a Unit owning its own slab group.
Units of a Program are finished innermost first.
*/
package compiler
