// Package htmlutil flattens HTML fragments from the safety feeds, which embed
// markup in warning bodies and RSS descriptions, into plain text.
package htmlutil

import "github.com/k3a/html2text"

// ToText strips tags and decodes entities, preserving readable text.
func ToText(s string) string {
	return html2text.HTML2Text(s)
}
