package theme

import (
	"os"
	"strings"
)

// SymbolSet holds all UI symbols, allowing runtime switching between
// Unicode and ASCII fallback sets.
type SymbolSet struct {
	Success  string
	Error    string
	Warning  string
	Info     string
	ArrowR   string
	Bullet   string
	Ellipsis string
	Checkbox string
	Checked  string
	Bot      string
}

var unicodeSymbols = SymbolSet{
	Success:  "✓", // ✓
	Error:    "✗", // ✗
	Warning:  "⚠", // ⚠
	Info:     "●", // ●
	ArrowR:   "→", // →
	Bullet:   "•", // •
	Ellipsis: "…", // …
	Checkbox: "☐", // ☐
	Checked:  "☑", // ☑
	Bot:      "Juno",
}

var asciiSymbols = SymbolSet{
	Success:  "[OK]",
	Error:    "[ERR]",
	Warning:  "[!]",
	Info:     "[i]",
	ArrowR:   "->",
	Bullet:   "*",
	Ellipsis: "...",
	Checkbox: "[ ]",
	Checked:  "[x]",
	Bot:      "Juno",
}

// DetectUnicodeSupport checks whether the terminal likely supports Unicode.
// Priority: JUNOAI_ASCII_SYMBOLS env (explicit override) > locale detection.
func DetectUnicodeSupport() bool {
	if v := os.Getenv("JUNOAI_ASCII_SYMBOLS"); v == "1" || strings.EqualFold(v, "true") {
		return false
	}

	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		val := strings.ToLower(os.Getenv(key))
		if strings.Contains(val, "utf-8") || strings.Contains(val, "utf8") {
			return true
		}
	}

	// Most modern terminals support Unicode; default to true.
	return true
}

// InitSymbols sets the package-level Symbol* variables based on terminal
// capabilities. Called automatically by init(), but can be called again
// if the environment changes (e.g., in tests).
func InitSymbols() {
	set := unicodeSymbols
	if !DetectUnicodeSupport() {
		set = asciiSymbols
	}

	SymbolSuccess = set.Success
	SymbolError = set.Error
	SymbolWarning = set.Warning
	SymbolInfo = set.Info
	SymbolArrowR = set.ArrowR
	SymbolBullet = set.Bullet
	SymbolEllipsis = set.Ellipsis
	SymbolCheckbox = set.Checkbox
	SymbolChecked = set.Checked
	SymbolBot = set.Bot
}

func init() {
	InitSymbols()
}
