/*
imap records how identifiers of obfuscated JavaScript/TypeScript were renamed
in a hand-deobfuscated copy, checks the recorded mappings for conflicts and
regenerates deobfuscated files from new obfuscated builds.
*/
package main

import (
	"github.com/polytrackmods/PolyDeobfuscated/cmd/imap/cmd"
)

func main() {
	cmd.Execute()
}
