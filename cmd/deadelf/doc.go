/*
The deadelf command reports functions that are never referenced anywhere in an
embedded binary or its sources.

	Usage: deadelf [flags] path/to/binary preprocessed1.c preprocessed2.c ...

The first argument is the compiled artifact; the remaining arguments are the
fully preprocessed source files that produced it (compile with -E so each file
is a standalone translation unit with no includes or macros left).

# How it works

 1. Reads the binary's symbol table (objdump -t) and keeps the function
    symbols defined in the code section, corroborated against the definition
    labels in the disassembly (objdump -d -S).
 2. Parses every translation unit and collects each identifier that resolves
    to one of those functions, in any position: direct calls, function-pointer
    assignments, dispatch-table initializers, casts, address-of expressions.
    Identifier resolution is scope-aware, so a local variable that happens to
    share a function's name is not a reference to it.
 3. Collects symbol mentions from the disassembly itself. This catches
    functions called only from code whose source is unavailable, e.g. a
    pre-built vendor object that forwards into analyzed code.
 4. Reports the set difference: all functions minus everything referenced in
    source or disassembly, sorted, one name per line.

A function that survives the report is referenced somewhere; the tool does
not claim its body is reachable at runtime, nor does it look for dead
branches inside live functions.

# Flags

The -objdump flag names the binary-inspection tool, typically a target
prefixed binutils build such as sparc-rtems-objdump.

The -lang flag selects the source dialect, c (default) or cpp.

The -o flag names the report file (default "deadFunctions"); -o - writes the
report to standard output instead.

The -cache-dir flag relocates the parsed-tree cache (default ".cache").
Cached trees are keyed by a fingerprint of file content; deleting the
directory simply forces a full re-parse.

The -jobs flag caps the number of parallel parsing workers.

The -json flag outputs the report as a JSON document.

The -debug flag enables verbose debug output, including every usage found
and where.

# Exit status

deadelf exits 0 on success and nonzero when the symbol table or disassembly
cannot be obtained. A source file that fails to parse is only a warning: the
unit contributes no usage evidence, which can make the report larger, never
smaller.
*/
package main
