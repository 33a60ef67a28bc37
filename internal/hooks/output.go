package hooks

const bashHook = `# frecency: record the working directory after every command.
__frecency_add() {
    [ "$PWD" = "${__frecency_last:-}" ] && return
    __frecency_last=$PWD
    ( {{quote .Exe}}{{template "flags" .}} add "$PWD" >/dev/null 2>&1 & )
}
case ";${PROMPT_COMMAND:-};" in
    *";__frecency_add;"*) ;;
    *) PROMPT_COMMAND="__frecency_add${PROMPT_COMMAND:+;$PROMPT_COMMAND}" ;;
esac
`

const zshHook = `# frecency: record the working directory on every directory change.
__frecency_add() {
    ( {{quote .Exe}}{{template "flags" .}} add "$PWD" >/dev/null 2>&1 & )
}
autoload -Uz add-zsh-hook
add-zsh-hook chpwd __frecency_add
`

const fishHook = `# frecency: record the working directory on every directory change.
function __frecency_add --on-variable PWD
    command {{fishquote .Exe}}{{template "fishflags" .}} add "$PWD" >/dev/null 2>&1 &
    disown 2>/dev/null
end
`

const flagsTemplate = `{{define "flags"}}` +
	`{{if .Config}} --config {{quote .Config}}{{end}}` +
	`{{if .Engine}} --engine {{quote .Engine}}{{end}}` +
	`{{if .DBFile}} --db-file {{quote .DBFile}}{{end}}` +
	`{{end}}` +
	`{{define "fishflags"}}` +
	`{{if .Config}} --config {{fishquote .Config}}{{end}}` +
	`{{if .Engine}} --engine {{fishquote .Engine}}{{end}}` +
	`{{if .DBFile}} --db-file {{fishquote .DBFile}}{{end}}` +
	`{{end}}`
