/*
Package compiler drives a shader through its passes.

Shader building:

	devinfo.Info + stage + dispatch width ->
		ir.NewShader ->
	ir.Shader (empty block) ->
		build.Builder ->
	ir.Shader (instructions in virtual registers) ->
		passes, validate.General after each ->
		validate.Late ->
	ir.Shader (ready for encoding)

Instruction streams can be executed by sim.Machine for testing.
*/
package compiler
