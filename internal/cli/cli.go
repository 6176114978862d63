// Package cli parses the voxpipe command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRecord     Command = "record"
	CommandDevices    Command = "devices"
	CommandAnalyze    Command = "analyze"
	CommandTranscribe Command = "transcribe"
	CommandModels     Command = "models"
	CommandDoctor     Command = "doctor"
	CommandVersion    Command = "version"
	CommandHelp       Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRecord:     {},
	CommandDevices:    {},
	CommandAnalyze:    {},
	CommandTranscribe: {},
	CommandModels:     {},
	CommandDoctor:     {},
	CommandVersion:    {},
	CommandHelp:       {},
}

// fileCommands take exactly one positional FILE argument.
var fileCommands = map[Command]struct{}{
	CommandAnalyze:    {},
	CommandTranscribe: {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	File       string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			rest := args[i+1:]
			if _, wantsFile := fileCommands[cmd]; wantsFile {
				if len(rest) != 1 {
					return Parsed{}, fmt.Errorf("%s requires exactly one FILE argument", cmd)
				}
				parsed.File = rest[0]
				return parsed, nil
			}
			if len(rest) != 0 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  record           Record until interrupted, then analyze and transcribe
  devices          List available input devices
  analyze FILE     Analyze a WAV file and print quality metrics
  transcribe FILE  Submit a WAV file for transcription
  models           List models available at the configured endpoint
  doctor           Run configuration and environment checks
  version          Print version information
  help             Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/voxpipe/config.yaml)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
