// Package scripts embeds the built-in release policies. Each top-level
// .risor file is a policy apidiff can select by name; breaking.risor is a
// helper module the policies import.
package scripts

import "embed"

//go:embed *.risor
var FS embed.FS
