// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/docopt/docopt-go"

	"github.com/cooper/vulpia/irc"
	"github.com/cooper/vulpia/irc/logger"
	"github.com/cooper/vulpia/irc/passwd"
)

// set via linker flags by the build
var commit = ""  // git hash
var version = "" // tagged version

func versionString() string {
	if version == "" {
		version = "dev"
	}
	if commit != "" {
		return fmt.Sprintf("vulpia %s (%s)", version, commit)
	}
	return "vulpia " + version
}

func main() {
	usage := `vulpia.
Usage:
	vulpia genpasswd [--quiet]
	vulpia run [--conf <filename>] [--quiet]
	vulpia -h | --help
	vulpia --version
Options:
	--conf <filename>  Configuration file to use [default: ircd.yaml].
	--quiet            Don't show startup/shutdown lines.
	-h --help          Show this screen.
	--version          Show version.`

	arguments, _ := docopt.ParseArgs(usage, nil, versionString())

	// genpasswd doesn't require a config file
	if arguments["genpasswd"].(bool) {
		reader := bufio.NewReader(os.Stdin)
		text, _ := reader.ReadString('\n')
		password := strings.TrimSpace(text)
		hash, err := passwd.GenerateFromPassword([]byte(password), passwd.DefaultCost)
		if err != nil {
			log.Fatal("encoding error: ", err.Error())
		}
		fmt.Println(string(hash))
		return
	}

	configfile := arguments["--conf"].(string)
	config, err := irc.LoadConfig(configfile)
	if err != nil {
		log.Fatal("Config file did not load successfully: ", err.Error())
	}

	logman, err := logger.NewManager(config.Logging)
	if err != nil {
		log.Fatal("Logger did not load successfully: ", err.Error())
	}

	server, err := irc.NewServer(config, logman)
	if err != nil {
		log.Fatal("Could not load server: ", err.Error())
	}
	if !arguments["--quiet"].(bool) {
		logman.Info("server", "Server running")
		defer logman.Info("server", "Server exiting")
	}
	defer server.Shutdown()

	if err := server.Run(); err != nil {
		log.Fatal(err.Error())
	}
}
