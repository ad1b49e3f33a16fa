// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import "errors"

var (
	errAccountAlreadyRegistered = errors.New(`Account already exists`)
	errNoSuchAccount            = errors.New(`No such account`)
	errPasswordMismatch         = errors.New(`Password incorrect`)
	errEncryptionUnknown        = errors.New(`Unknown password encryption algorithm`)

	errAlreadyLinked     = errors.New(`Server is already linked`)
	errConnectInProgress = errors.New(`Already trying to connect`)
	errNoLinkBlock       = errors.New(`No configuration for that server`)
	errNoAutoconnect     = errors.New(`Autoconnect is not enabled for that server`)
	errNotConnecting     = errors.New(`No connection attempt in progress`)

	errListDuplicate = errors.New(`Value is already in the list`)
	errNotAListMode  = errors.New(`Mode does not carry a list`)

	errSaslAgentMismatch = errors.New(`SASL agent does not match`)
	errSaslUnknownTarget = errors.New(`Unknown SASL target connection`)
)
