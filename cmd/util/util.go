package util

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/dCheck/rpc/client"
	"github.com/ValentinKolb/dCheck/rpc/common"
	"github.com/ValentinKolb/dCheck/rpc/serializer"
	"github.com/ValentinKolb/dCheck/rpc/transport"
	"github.com/ValentinKolb/dCheck/rpc/transport/http"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by dcheck
	EnvPrefix = "dcheck"
)

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

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds common RPC connection and credential flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a single request"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:8080", WrapString("The address of the dCheck server. Multiple endpoints can be specified as a comma-separated list, requests are distributed round robin"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times a read request is tried. Writes are sent only once"))

	key = "shard"
	cmd.PersistentFlags().Int(key, 100, WrapString("ID of the workspace (shard) to connect to"))

	key = "username"
	cmd.PersistentFlags().StringP(key, "u", "", WrapString("The user name. Falls back to DCHECK_USERNAME, then to a prompt"))

	key = "password"
	cmd.PersistentFlags().StringP(key, "p", "", WrapString("The password. Falls back to DCHECK_PASSWORD, then to a prompt without echo"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	var endpoints []string
	for _, e := range strings.Split(viper.GetString("transport-endpoints"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}

	return &common.ClientConfig{
		Endpoints:     endpoints,
		TimeoutSecond: viper.GetInt("timeout"),
		RetryCount:    viper.GetInt("transport-retries"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.ByName(viper.GetString("serializer"))
}

// GetTransport creates transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server side of the configured transport
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetShardID retrieves the configured shard ID
func GetShardID() uint64 {
	return uint64(viper.GetInt("shard"))
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Credentials
// --------------------------------------------------------------------------

// Credentials resolves user name and password. Flags win over the environment
// (both are read through viper), missing values are prompted for on the terminal.
func Credentials() (user, password string, err error) {
	user = strings.TrimSpace(viper.GetString("username"))
	password = viper.GetString("password")

	if user == "" {
		if user, err = promptLine("Username: "); err != nil {
			return "", "", err
		}
		if user == "" {
			return "", "", errors.New("no username given")
		}
	}
	if password == "" {
		if password, err = promptPassword("Password: "); err != nil {
			return "", "", err
		}
	}
	return user, password, nil
}

func promptLine(prompt string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("no username given and stdin is not a terminal")
	}
	_, _ = fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no password given and stdin is not a terminal")
	}
	_, _ = fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// --------------------------------------------------------------------------
// Client setup
// --------------------------------------------------------------------------

// ConnectStore binds the flags of cmd, creates the RPC store of the configured
// shard and logs in with the resolved credentials.
func ConnectStore(cmd *cobra.Command) (*client.RPCStore, error) {
	// Bind command flags to viper
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return nil, err
	}

	// Get serializer and transport
	s, err := GetSerializer()
	if err != nil {
		return nil, err
	}
	t, err := GetTransport()
	if err != nil {
		return nil, err
	}

	user, password, err := Credentials()
	if err != nil {
		return nil, err
	}

	rpcStore, err := client.NewRPCStore(GetShardID(), *GetClientConfig(), t, s)
	if err != nil {
		return nil, err
	}
	if err := rpcStore.Login(user, password); err != nil {
		_ = rpcStore.Close()
		return nil, err
	}
	return rpcStore, nil
}
