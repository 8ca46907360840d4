package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"

	"github.com/mit-dci/hodl/hodlrpc"
	"github.com/mit-dci/hodl/lnutil"
)

var exitCommand = &Command{
	Format:           lnutil.White("exit\n"),
	Description:      fmt.Sprintf("Alias: %s\nExit the interactive shell.\n", lnutil.White("quit")),
	ShortDescription: "Exit the interactive shell.\n",
}

var helpCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("help"), lnutil.OptColor("command")),
	Description:      "Show information about a given command\n",
	ShortDescription: "Show information about a given command\n",
}

var stopCommand = &Command{
	Format:           fmt.Sprintf("%s%s\n", lnutil.White("stop"), lnutil.OptColor("y/n")),
	Description:      "Shut down the hodl node.  Asks first unless the answer is given.\n",
	ShortDescription: "Shut down the hodl node.\n",
}

type shellCmd struct {
	help *Command
	run  func(lc *hodlAfClient, args []string) error
}

var commands map[string]shellCmd

func init() {
	commands = map[string]shellCmd{
		"addhodl": {addHodlCommand, (*hodlAfClient).AddHodl},
		"addinv":  {addInvCommand, (*hodlAfClient).AddInv},
		"status":  {statusCommand, (*hodlAfClient).Status},
		"inv":     {invCommand, (*hodlAfClient).Inv},
		"lsinv":   {lsInvCommand, (*hodlAfClient).LsInv},
		"settle":  {settleCommand, (*hodlAfClient).Settle},
		"cancel":  {cancelCommand, (*hodlAfClient).Cancel},
		"pay":     {payCommand, (*hodlAfClient).Pay},
		"graph":   {graphCommand, (*hodlAfClient).Graph},
		"qr":      {qrCommand, (*hodlAfClient).QR},
		"con":     {conCommand, (*hodlAfClient).Connect},
		"lscon":   {lsConCommand, (*hodlAfClient).LsCon},
		"dis":     {disCommand, (*hodlAfClient).Disconnect},
		"sign":    {signCommand, (*hodlAfClient).Sign},
		"verify":  {verifyCommand, (*hodlAfClient).Verify},
		"info":    {infoCommand, (*hodlAfClient).Info},
		"stop":    {stopCommand, (*hodlAfClient).Stop},
		"help":    {helpCommand, (*hodlAfClient).Help},
	}
}

// Shellparse parses user input and hands it to command functions if matching
func (lc *hodlAfClient) Shellparse(cmdslice []string) error {
	var args []string
	cmd := cmdslice[0]
	if len(cmdslice) > 1 {
		args = cmdslice[1:]
	}
	if cmd == "exit" || cmd == "quit" {
		return errExit
	}

	c, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(color.Output, "Command not recognized. type help for command list.\n")
		return nil
	}
	if len(args) > 0 && args[0] == "-h" {
		printHelp(c.help, false)
		return nil
	}
	err := c.run(lc, args)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

func printHelp(c *Command, short bool) {
	fmt.Fprintf(color.Output, "%s", c.Format)
	if short {
		fmt.Fprintf(color.Output, "%s\n", c.ShortDescription)
	} else {
		fmt.Fprintf(color.Output, "%s\n", c.Description)
	}
}

func (lc *hodlAfClient) Help(textArgs []string) error {
	if len(textArgs) == 0 {
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprint(color.Output, lnutil.Header("Commands:\n"))
		for _, name := range names {
			printHelp(commands[name].help, true)
		}
		printHelp(exitCommand, true)
		return nil
	}

	if textArgs[0] == "exit" || textArgs[0] == "quit" {
		printHelp(exitCommand, false)
		return nil
	}
	c, ok := commands[textArgs[0]]
	if !ok {
		return fmt.Errorf("%s: command not recognized", textArgs[0])
	}
	printHelp(c.help, false)
	return nil
}

// confirm takes the answer from given if there is one, and asks otherwise.
// An empty answer is no.
func (lc *hodlAfClient) confirm(question string, given []string) (bool, error) {
	var ans string
	switch {
	case len(given) > 0:
		ans = given[0]
	case lc.ask != nil:
		var err error
		ans, err = lc.ask(question + " [y/n] ")
		if err != nil {
			return false, err
		}
	default:
		return false, fmt.Errorf("%s needs a y/n answer", question)
	}

	switch {
	case lnutil.YupString(ans):
		return true, nil
	case lnutil.NopeString(ans):
		return false, nil
	}
	return false, fmt.Errorf("%q is neither yes nor no", ans)
}

func (lc *hodlAfClient) Stop(textArgs []string) error {
	ok, err := lc.confirm("stop hodld?", textArgs)
	if err != nil || !ok {
		return err
	}

	reply := new(hodlrpc.StatusReply)
	err = lc.Call("Stop", hodlrpc.NoArgs{}, reply)
	if err != nil {
		return err
	}
	fmt.Fprintf(color.Output, "%s\n", reply.Status)
	return errExit
}
