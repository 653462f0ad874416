package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hearthmod/bailiff/moderation/platform"

	"github.com/bwmarrin/discordgo"
)

// JSON error codes returned by the Discord REST API
const (
	codeUnknownChannel     = 10003
	codeUnknownMember      = 10007
	codeUnknownMessage     = 10008
	codeUnknownRole        = 10011
	codeUnknownUser        = 10013
	codeMissingAccess      = 50001
	codeCannotMessageUser  = 50007
	codeMissingPermissions = 50013
)

// Translates REST failures into the platform sentinel errors. The original error stays in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return err
	}
	if rerr.Message != nil {
		switch rerr.Message.Code {
		case codeMissingPermissions, codeMissingAccess:
			return fmt.Errorf("%w: %w", platform.ErrForbidden, err)
		case codeCannotMessageUser:
			return fmt.Errorf("%w: %w", platform.ErrCannotMessage, err)
		case codeUnknownChannel, codeUnknownMember, codeUnknownMessage, codeUnknownRole, codeUnknownUser:
			return fmt.Errorf("%w: %w", platform.ErrNotFound, err)
		}
	}
	if rerr.Response != nil {
		switch rerr.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", platform.ErrForbidden, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", platform.ErrNotFound, err)
		}
	}
	return err
}
