package util

import (
	"fmt"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

var Logger = logger.GetLogger("cli")

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupConnFlags adds the connection and transport flags to a command
func SetupConnFlags(cmd *cobra.Command) {
	key := "server-option"
	cmd.PersistentFlags().StringSlice(key, nil, WrapString("Foreign server option in the format name=value (driver, host, port, dbname). Can be repeated"))

	key = "user-option"
	cmd.PersistentFlags().StringSlice(key, nil, WrapString("User mapping option in the format name=value (user, password). Overrides server options of the same name. Can be repeated"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("Timeout in seconds for connect and every single statement (0 disables the timeout)"))

	key = "session-timeout"
	cmd.PersistentFlags().Int(key, 60, WrapString("How long the server keeps an idle session in seconds (http driver only, 0 keeps the server default)"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket write buffer (in KB, binary driver only)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 512, WrapString("The size of the socket read buffer (in KB, binary driver only)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (binary driver only)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, binary driver only)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time (in seconds, binary driver only, -1 keeps the system default)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("chbridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// InitLogging sets the level of all package loggers from the log-level flag
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"))
}

// GetTransportConfig reads the transport configuration from viper
func GetTransportConfig() common.TransportConfig {
	return common.TransportConfig{
		TimeoutSecond:        viper.GetInt("timeout"),
		SessionTimeoutSecond: viper.GetInt("session-timeout"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		},
	}
}

// GetOptions parses the name=value list stored under key
func GetOptions(key string) ([]common.Option, error) {
	var options []common.Option
	for _, raw := range viper.GetStringSlice(key) {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid %s %q, expected name=value", key, raw)
		}
		options = append(options, common.Option{Name: strings.TrimSpace(name), Value: value})
	}
	return options, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
