package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/voxpipe.yaml", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/voxpipe.yaml", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
		wantFile string
	}{
		{
			name:     "help short flag",
			args:     []string{"-h"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "help long flag",
			args:     []string{"--help"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "version flag",
			args:     []string{"--version"},
			wantCmd:  CommandVersion,
			wantHelp: false,
		},
		{
			name:    "config after command",
			args:    []string{"devices", "--config", "/tmp/cfg"},
			wantErr: "unexpected arguments after command",
		},
		{
			name:    "missing config path",
			args:    []string{"--config"},
			wantErr: "requires a path",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "unknown command",
			args:    []string{"bogus"},
			wantErr: "unknown command",
		},
		{
			name:    "extra args after command",
			args:    []string{"doctor", "extra"},
			wantErr: "unexpected arguments",
		},
		{
			name:     "valid record command",
			args:     []string{"record"},
			wantCmd:  CommandRecord,
			wantHelp: false,
		},
		{
			name:     "valid models with config",
			args:     []string{"--config", "/tmp/cfg", "models"},
			wantCmd:  CommandModels,
			wantHelp: false,
			wantPath: "/tmp/cfg",
		},
		{
			name:     "analyze with file",
			args:     []string{"analyze", "/tmp/clip.wav"},
			wantCmd:  CommandAnalyze,
			wantHelp: false,
			wantFile: "/tmp/clip.wav",
		},
		{
			name:    "analyze without file",
			args:    []string{"analyze"},
			wantErr: "exactly one FILE argument",
		},
		{
			name:    "transcribe with two files",
			args:    []string{"transcribe", "a.wav", "b.wav"},
			wantErr: "exactly one FILE argument",
		},
		{
			name:     "transcribe with config and file",
			args:     []string{"--config", "/tmp/cfg", "transcribe", "/tmp/clip.wav"},
			wantCmd:  CommandTranscribe,
			wantHelp: false,
			wantPath: "/tmp/cfg",
			wantFile: "/tmp/clip.wav",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			require.Equal(t, tc.wantFile, parsed.File)
		})
	}
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("voxpipe")
	require.Contains(t, text, "record")
	require.Contains(t, text, "analyze FILE")
	require.Contains(t, text, "transcribe FILE")
	require.Contains(t, text, "models")
	require.Contains(t, text, "doctor")
	require.Contains(t, text, "--config PATH")
}
