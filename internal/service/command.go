package service

import (
	"encoding/json"

	"github.com/hhsearch/crawlcontrol/internal/control"
)

// command is the decoded shape of one inbound bus message. Pointer and
// slice fields distinguish absent keys from zero values, which is what the
// dispatch rules below key on.
type command struct {
	ID        string   `json:"id"`
	Seeds     []string `json:"seeds"`
	PageModel *string  `json:"page_model"`
	Stop      bool     `json:"stop"`
	FromTests string   `json:"from-tests"`
}

type commandKind int

const (
	cmdInvalid commandKind = iota
	cmdStopService
	cmdStartCrawl
	cmdStopCrawl
)

// parseCommand decodes and classifies a message payload. Anything that is
// not valid JSON or matches no known shape classifies as cmdInvalid and is
// dropped by the caller.
func parseCommand(data []byte) (command, commandKind) {
	var c command
	if err := json.Unmarshal(data, &c); err != nil {
		return command{}, cmdInvalid
	}
	switch {
	case c.FromTests == "stop":
		return c, cmdStopService
	case c.ID != "" && c.Seeds != nil && c.PageModel != nil:
		return c, cmdStartCrawl
	case c.ID != "" && c.Stop:
		return c, cmdStopCrawl
	default:
		return c, cmdInvalid
	}
}

// Outbound message envelopes, one per channel.

type progressMessage struct {
	ID       string `json:"id"`
	Progress string `json:"progress"`
}

type pagesMessage struct {
	ID         string               `json:"id"`
	PageSample []control.PageSample `json:"page_sample"`
}

type modelMessage struct {
	ID    string `json:"id"`
	Model string `json:"model"`
}
