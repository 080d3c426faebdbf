/*
Package cmd implements the command-line interface for the mem0 filter
service. It bootstraps configuration and exposes the serve command.
*/
package cmd

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

/*
Embed a mini filesystem into the binary to hold the default config file.
This will be written to the home directory of the user running the service,
which allows a developer to easily override the config file.
*/
//go:embed cfg/*
var embedded embed.FS

/*
rootCmd represents the base command when called without any subcommands
*/
var (
	projectName  = "mem0-filter"
	cfgFile      string
	openaiAPIKey string

	rootCmd = &cobra.Command{
		Use:   "mem0-filter",
		Short: "A memory-augmentation filter for chat hosts",
		Long:  longRoot,
	}
)

/*
Execute is the main entry point for the CLI. It initializes the root command
and executes it.
*/
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yml",
		"config file (default is $HOME/."+projectName+"/config.yml)",
	)

	rootCmd.PersistentFlags().StringVar(
		&openaiAPIKey,
		"openai-api-key",
		os.Getenv("OPENAI_API_KEY"),
		"API key for the OpenAI embedding backend",
	)
}

/*
initConfig writes the default config file to the user's home directory if it
doesn't exist, and then reads the config file from the user's home directory.
*/
func initConfig() {
	var err error

	if err = writeConfig(); err != nil {
		log.Fatal(err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	// Add user config directory (~/.mem0-filter)
	home, _ := os.UserHomeDir()
	viper.AddConfigPath(home + "/." + projectName)

	if err = viper.ReadInConfig(); err != nil {
		log.Fatal(err)
		return
	}

	// If OpenAI API key provided via flag, set environment variable for the
	// embedding backend.
	if openaiAPIKey != "" {
		_ = os.Setenv("OPENAI_API_KEY", openaiAPIKey)
	}
}

/*
writeConfig writes the default config file to the user's home directory.
*/
func writeConfig() (err error) {
	var (
		home, _ = os.UserHomeDir()
		fh      fs.File
		buf     bytes.Buffer
	)

	configDir := home + "/." + projectName
	if !CheckFileExists(configDir) {
		if err = os.MkdirAll(configDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	for _, file := range []string{cfgFile} {
		fullPath := configDir + "/" + file

		if CheckFileExists(fullPath) {
			continue
		}

		if fh, err = embedded.Open("cfg/" + file); err != nil {
			return fmt.Errorf("failed to open embedded config file: %w", err)
		}

		if _, err = io.Copy(&buf, fh); err != nil {
			fh.Close()
			return fmt.Errorf("failed to read embedded config file: %w", err)
		}

		if err = os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
			fh.Close()
			return fmt.Errorf("failed to write config file: %w", err)
		}

		log.Println("wrote config file to", fullPath)
		fh.Close()
	}

	return nil
}

/*
CheckFileExists reports whether a path exists.
*/
func CheckFileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

var longRoot = `mem0-filter augments chat conversations with long-term memory.

Incoming user messages are enriched with relevant memories retrieved from a
Qdrant vector store, using Ollama (or OpenAI) embeddings, and every user and
assistant message is recorded for future retrieval. The service speaks the
inlet/outlet filter contract used by Open WebUI style hosts.
`
