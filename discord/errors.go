package discord

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

func restError(err error) (status int, code int, ok bool) {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return 0, 0, false
	}
	if rerr.Response != nil {
		status = rerr.Response.StatusCode
	}
	if rerr.Message != nil {
		code = rerr.Message.Code
	}
	return status, code, true
}

// Whether the error means the addressed object (message, channel, webhook) does not exist.
func isNotFound(err error) bool {
	status, code, ok := restError(err)
	if !ok {
		return false
	}
	switch code {
	case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownWebhook:
		return true
	}
	return status == http.StatusNotFound
}
