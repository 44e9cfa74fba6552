//go:build !unix

package client

import "errors"

func (c *Client) startDetached() error {
	return errors.New("daemon spawn not supported on this platform")
}
