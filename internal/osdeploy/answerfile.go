package osdeploy

import (
	"encoding/base64"
	"regexp"
	"strings"
	"unicode/utf16"
)

// Answer-file templates carry __TOKEN__ placeholders. Rendering
// substitutes the tokens values exist for and comments out every line
// still holding an unresolved token, so a template asking for a
// domain join degrades to a workgroup install instead of feeding the
// installer a literal placeholder.
const (
	tokenComputerName  = "__COMPUTERNAME__"
	tokenAdminPassword = "__ADMINPASSWORD__"
	tokenJoinUsername  = "__JOINUSERNAME__"
	tokenJoinPassword  = "__JOINPASSWORD__"
	tokenJoinDomain    = "__JOINDOMAIN__"
	tokenMachineOU     = "__MACHINEOBJECTOU__"
)

var tokenPattern = regexp.MustCompile(`__[A-Z]+__`)

// AnswerFileValues are the substitutions available to a template.
// Empty fields leave their tokens unresolved.
type AnswerFileValues struct {
	ComputerName  string
	AdminPassword string
	JoinUsername  string
	JoinPassword  string
	JoinDomain    string
	MachineOU     string
}

// RenderAnswerFile substitutes the tokens of an unattend template and
// neutralizes what is left. The administrator password is stored in
// the encoded form the installer expects; the join password rides in
// plain text inside its credential element, which is how unattended
// joins work.
func RenderAnswerFile(template string, v AnswerFileValues) string {
	replacements := []struct {
		token string
		value string
	}{
		{tokenComputerName, v.ComputerName},
		{tokenAdminPassword, encodeInstallerPassword(v.AdminPassword, "AdministratorPassword")},
		{tokenJoinUsername, v.JoinUsername},
		{tokenJoinPassword, v.JoinPassword},
		{tokenJoinDomain, v.JoinDomain},
		{tokenMachineOU, v.MachineOU},
	}

	rendered := template
	for _, r := range replacements {
		if r.value == "" {
			continue
		}
		rendered = strings.ReplaceAll(rendered, r.token, r.value)
	}

	lines := strings.Split(rendered, "\n")
	for i, line := range lines {
		if !tokenPattern.MatchString(line) {
			continue
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "<!--") {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		lines[i] = indent + "<!-- " + strings.ReplaceAll(trimmed, "--", "- -") + " -->"
	}
	return strings.Join(lines, "\n")
}

// encodeInstallerPassword produces the base64 form the installer reads
// for password elements: UTF-16LE of the password with the element
// name appended. Empty passwords stay empty so their token remains
// unresolved.
func encodeInstallerPassword(password, element string) string {
	if password == "" {
		return ""
	}
	units := utf16.Encode([]rune(password + element))
	raw := make([]byte, 0, len(units)*2)
	for _, u := range units {
		raw = append(raw, byte(u), byte(u>>8))
	}
	return base64.StdEncoding.EncodeToString(raw)
}
