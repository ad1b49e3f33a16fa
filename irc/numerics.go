// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import "fmt"

// Numeric is a reply code plus the format of its trailing parameters. Formats
// take string arguments only; callers stringify numbers.
type Numeric struct {
	Code   int
	Format string
}

var numerics = map[string]Numeric{
	"RPL_CHANNELMODEIS":    {324, "%s %s"},
	"RPL_CREATIONTIME":     {329, "%s %s"},
	"RPL_NOTOPIC":          {331, "%s :No topic is set"},
	"RPL_TOPIC":            {332, "%s :%s"},
	"RPL_TOPICWHOTIME":     {333, "%s %s %s"},
	"RPL_NAMREPLY":         {353, "%s %s :%s"},
	"RPL_ENDOFNAMES":       {366, "%s :End of /NAMES list"},
	"RPL_BANLIST":          {367, "%s %s %s %s"},
	"RPL_ENDOFBANLIST":     {368, "%s :End of channel ban list"},
	"RPL_EXCEPTLIST":       {348, "%s %s %s %s"},
	"RPL_ENDOFEXCEPTLIST":  {349, "%s :End of channel exception list"},
	"ERR_NOSUCHNICK":       {401, "%s :No such nick/channel"},
	"ERR_NOSUCHSERVER":     {402, "%s :No such server"},
	"ERR_USERNOTINCHANNEL": {441, "%s %s :They aren't on that channel"},
	"ERR_NOTONCHANNEL":     {442, "%s :You're not on that channel"},
	"ERR_NEEDMOREPARAMS":   {461, "%s :Not enough parameters"},
	"ERR_CHANOPRIVSNEEDED": {482, "%s :You're not a channel operator"},
	"RPL_LOGGEDIN":         {900, "%s %s :You are now logged in as %s"},
	"RPL_LOGGEDOUT":        {901, "%s :You are now logged out"},
	"ERR_SASLFAIL":         {904, ":SASL authentication failed"},
	"RPL_SASLSUCCESS":      {903, ":SASL authentication successful"},
	"RPL_SASLMECHS":        {908, "%s :are available SASL mechanisms"},
}

// LookupNumeric resolves a symbolic reply name to its wire form.
func LookupNumeric(name string) (n Numeric, ok bool) {
	n, ok = numerics[name]
	return
}

func (n Numeric) render(args ...string) string {
	iargs := make([]interface{}, len(args))
	for i, arg := range args {
		iargs[i] = arg
	}
	return fmt.Sprintf(n.Format, iargs...)
}
