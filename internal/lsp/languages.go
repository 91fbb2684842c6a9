package lsp

// ServerCommand is one entry in the fixed language → tool table.
type ServerCommand struct {
	Cmd  string
	Args []string
}

// serverCommands maps editor language tags to the language server that
// backs them. Tags with no entry leave the session idle.
var serverCommands = map[string]ServerCommand{
	"javascript": {Cmd: "typescript-language-server", Args: []string{"--stdio"}},
	"typescript": {Cmd: "typescript-language-server", Args: []string{"--stdio"}},
	"nodejs":     {Cmd: "typescript-language-server", Args: []string{"--stdio"}},

	"python":  {Cmd: "pyright-langserver", Args: []string{"--stdio"}},
	"python3": {Cmd: "pyright-langserver", Args: []string{"--stdio"}},

	"bash": {Cmd: "bash-language-server", Args: []string{"start"}},
	"sh":   {Cmd: "bash-language-server", Args: []string{"start"}},

	"html": {Cmd: "vscode-html-language-server", Args: []string{"--stdio"}},
	"css":  {Cmd: "vscode-css-language-server", Args: []string{"--stdio"}},
	"json": {Cmd: "vscode-json-language-server", Args: []string{"--stdio"}},

	"cpp":  {Cmd: "clangd"},
	"c":    {Cmd: "clangd"},
	"go":   {Cmd: "gopls"},
	"rust": {Cmd: "rust-analyzer"},
	"java": {Cmd: "jdtls"},
}

// LookupServer resolves a language tag to its server command.
func LookupServer(language string) (ServerCommand, bool) {
	sc, ok := serverCommands[language]
	return sc, ok
}
