package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_fastmem() {
    local cur prev words cword
    _init_completion || return

    local commands="init set get rm ls clear passwd save load status diff keyring help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        clear)
            COMPREPLY=($(compgen -W "--yes" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}
complete -F _fastmem fastmem
`

const zshCompletion = `#compdef fastmem

_fastmem() {
    local -a commands
    commands=(
        'init:Create a new storage'
        'set:Encrypt and store a value'
        'get:Decrypt and print a value'
        'rm:Remove a key'
        'ls:List stored keys'
        'clear:Remove all entries'
        'passwd:Set or change the password'
        'save:Write a named snapshot'
        'load:Restore a named snapshot'
        'status:Show storage status'
        'diff:Compare current state with a snapshot'
        'keyring:Manage the OS keyring password'
        'completion:Generate shell completions'
        'help:Show help'
    )

    if (( CURRENT == 2 )); then
        _describe 'command' commands
        return
    fi

    case "$words[2]" in
        keyring)
            _values 'action' save delete status
            ;;
        completion)
            _values 'shell' bash zsh fish
            ;;
    esac
}

_fastmem "$@"
`

const fishCompletion = `complete -c fastmem -f
complete -c fastmem -n '__fish_use_subcommand' -a init -d 'Create a new storage'
complete -c fastmem -n '__fish_use_subcommand' -a set -d 'Encrypt and store a value'
complete -c fastmem -n '__fish_use_subcommand' -a get -d 'Decrypt and print a value'
complete -c fastmem -n '__fish_use_subcommand' -a rm -d 'Remove a key'
complete -c fastmem -n '__fish_use_subcommand' -a ls -d 'List stored keys'
complete -c fastmem -n '__fish_use_subcommand' -a clear -d 'Remove all entries'
complete -c fastmem -n '__fish_use_subcommand' -a passwd -d 'Set or change the password'
complete -c fastmem -n '__fish_use_subcommand' -a save -d 'Write a named snapshot'
complete -c fastmem -n '__fish_use_subcommand' -a load -d 'Restore a named snapshot'
complete -c fastmem -n '__fish_use_subcommand' -a status -d 'Show storage status'
complete -c fastmem -n '__fish_use_subcommand' -a diff -d 'Compare with a snapshot'
complete -c fastmem -n '__fish_use_subcommand' -a keyring -d 'Manage keyring password'
complete -c fastmem -n '__fish_use_subcommand' -a completion -d 'Generate completions'
complete -c fastmem -n '__fish_seen_subcommand_from keyring' -a 'save delete status'
complete -c fastmem -n '__fish_seen_subcommand_from completion' -a 'bash zsh fish'
`
