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
		os.Exit(ExitError)
	}
}

const bashCompletion = `_pinlock() {
    local cur prev words cword
    _init_completion || return

    local commands="setup change disable unlock factor status compact help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    case "$prev" in
        -config)
            _filedir yaml
            return
            ;;
        -factor)
            COMPREPLY=($(compgen -W "pin biometric both" -- "$cur"))
            return
            ;;
    esac

    local cmd="${words[1]}"
    case "$cmd" in
        setup)
            COMPREPLY=($(compgen -W "-factor -config" -- "$cur"))
            ;;
        factor)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "-config" -- "$cur"))
            else
                COMPREPLY=($(compgen -W "pin biometric both" -- "$cur"))
            fi
            ;;
        change|disable|unlock|status|compact)
            COMPREPLY=($(compgen -W "-config" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _pinlock pinlock
`

const zshCompletion = `#compdef pinlock

_pinlock() {
    local -a commands
    commands=(
        'setup:Enable the lock with a new PIN'
        'change:Change the PIN'
        'disable:Disable the lock and delete the PIN'
        'unlock:Ask for the PIN or biometric'
        'factor:Choose pin, biometric or both'
        'status:Show lock status'
        'compact:Compact the state file'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'pinlock commands' commands
            ;;
        args)
            case "${words[2]}" in
                setup)
                    _arguments \
                        '-factor[Unlock factor]:factor:(pin biometric both)' \
                        '-config[Config file]:file:_files'
                    ;;
                factor)
                    _arguments \
                        '-config[Config file]:file:_files' \
                        '1:factor:(pin biometric both)'
                    ;;
                change|disable|unlock|status|compact)
                    _arguments '-config[Config file]:file:_files'
                    ;;
                help)
                    _describe -t commands 'pinlock commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_pinlock "$@"
`

const fishCompletion = `# pinlock fish completions

set -l commands setup change disable unlock factor status compact help completion

complete -c pinlock -f

# Commands
complete -c pinlock -n "not __fish_seen_subcommand_from $commands" -a setup -d 'Enable the lock'
complete -c pinlock -n "not __fish_seen_subcommand_from $commands" -a change -d 'Change the PIN'
complete -c pinlock -n "not __fish_seen_subcommand_from $commands" -a disable -d 'Disable the lock'
complete -c pinlock -n "not __fish_seen_subcommand_from $commands" -a unlock -d 'Ask for the PIN'
complete -c pinlock -n "not __fish_seen_subcommand_from $commands" -a factor -d 'Choose the unlock factor'
complete -c pinlock -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show lock status'
complete -c pinlock -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact the state file'
complete -c pinlock -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c pinlock -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# flags
complete -c pinlock -n "__fish_seen_subcommand_from $commands" -o config -r -F -d 'Config file'
complete -c pinlock -n "__fish_seen_subcommand_from setup" -o factor -x -a "pin biometric both" -d 'Unlock factor'
complete -c pinlock -n "__fish_seen_subcommand_from factor" -a "pin biometric both"

# help completions
complete -c pinlock -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c pinlock -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
