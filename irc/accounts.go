// Copyright (c) 2026 Mitchell Cooper
// released under the MIT license

package irc

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cooper/vulpia/irc/passwd"
	"github.com/cooper/vulpia/irc/utils"
)

// AccountRow is one row of the accounts table. The password column holds the
// encoded form together with the algorithm tag in `encrypt`; the scheme is
// unsalted for compatibility with rows written by older deployments.
type AccountRow struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Password string `db:"password"`
	Encrypt  string `db:"encrypt"`
	Created  int64  `db:"created"`
	CServer  string `db:"cserver"`
	CSID     string `db:"csid"`
	Updated  int64  `db:"updated"`
	UServer  string `db:"userver"`
	USID     string `db:"usid"`
}

// ClientAccount is the sanitized view of an account attached to a logged-in
// user. It never carries credentials.
type ClientAccount struct {
	ID      int64
	Name    string
	Created int64
}

const createAccountsTable = `
CREATE TABLE IF NOT EXISTS accounts (
	id       INTEGER PRIMARY KEY,
	name     VARCHAR NOT NULL UNIQUE COLLATE NOCASE,
	password VARCHAR NOT NULL,
	encrypt  VARCHAR NOT NULL,
	created  INTEGER NOT NULL,
	cserver  VARCHAR NOT NULL DEFAULT '',
	csid     INTEGER NOT NULL DEFAULT 0,
	updated  INTEGER NOT NULL DEFAULT 0,
	userver  VARCHAR NOT NULL DEFAULT '',
	usid     INTEGER NOT NULL DEFAULT 0
)`

// AccountManager owns the accounts table. It is the sole writer; the
// database is authoritative and nothing is cached on the heap.
type AccountManager struct {
	sync.Mutex // tier 3: serializes writes

	server *Server
	db     *sqlx.DB
}

func (am *AccountManager) Initialize(server *Server, driver, path string) error {
	am.server = server

	db, err := sqlx.Connect(driver, path)
	if err != nil {
		return err
	}
	// sqlite performs best over a single connection
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(createAccountsTable); err != nil {
		db.Close()
		return err
	}
	am.db = db
	return nil
}

func (am *AccountManager) Close() error {
	if am.db == nil {
		return nil
	}
	return am.db.Close()
}

// LoadAccount fetches an account row by name, case-insensitively.
func (am *AccountManager) LoadAccount(name string) (*AccountRow, error) {
	var row AccountRow
	err := am.db.Get(&row, `SELECT * FROM accounts WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNoSuchAccount
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Register creates an account. The name must be unused (case-insensitively);
// the id is assigned as max(id)+1; the password is encoded under the
// configured algorithm.
func (am *AccountManager) Register(name, password string, origin *Peer, client *Client) (*AccountRow, error) {
	algorithm := am.server.Config().Accounts.Encryption
	if algorithm == "" {
		algorithm = "sha1"
	}
	if !passwd.SupportedAlgorithm(algorithm) {
		return nil, fmt.Errorf("%w: %s", errEncryptionUnknown, algorithm)
	}

	am.Lock()
	defer am.Unlock()

	var count int
	if err := am.db.Get(&count, `SELECT COUNT(*) FROM accounts WHERE name = ?`, name); err != nil {
		return nil, err
	}
	if count != 0 {
		return nil, fmt.Errorf("%w: %s", errAccountAlreadyRegistered, name)
	}

	var nextID int64
	if err := am.db.Get(&nextID, `SELECT COALESCE(MAX(id), 0) + 1 FROM accounts`); err != nil {
		return nil, err
	}

	encoded, err := passwd.EncodeLegacy(algorithm, password)
	if err != nil {
		return nil, err
	}

	row := &AccountRow{
		ID:       nextID,
		Name:     name,
		Password: encoded,
		Encrypt:  algorithm,
		Created:  time.Now().Unix(),
		CServer:  origin.Name(),
		CSID:     origin.SID(),
	}
	_, err = am.db.NamedExec(`
		INSERT INTO accounts (id, name, password, encrypt, created, cserver, csid)
		VALUES (:id, :name, :password, :encrypt, :created, :cserver, :csid)`, row)
	if err != nil {
		return nil, err
	}

	if client != nil {
		am.server.noticeOpers("account_register",
			fmt.Sprintf("%s registered the account %s", client.Nick(), name))
	}
	return row, nil
}

// Login authenticates a user against an account. A nil password means the
// caller has already authenticated (SVSLOGIN, or a registration that just
// happened). On success the sanitized row is attached, the registered user
// mode applied, and the login announced.
func (am *AccountManager) Login(name string, client *Client, password *string, justRegistered bool) error {
	row, err := am.LoadAccount(name)
	if err != nil {
		if errors.Is(err, errNoSuchAccount) && client.IsLocal() {
			client.ServerNotice("login", "No such account")
		}
		return err
	}

	if password != nil && !passwd.VerifyLegacy(row.Encrypt, row.Password, *password) {
		if client.IsLocal() {
			client.ServerNotice("login", "Password incorrect")
		}
		return errPasswordMismatch
	}

	client.setAccount(&ClientAccount{
		ID:      row.ID,
		Name:    row.Name,
		Created: row.Created,
	})
	if client.setMode("registered", true) && client.IsLocal() {
		client.SendFrom(client, "MODE", client.Nick(), "+r")
	}

	if client.IsLocal() {
		client.Numeric("RPL_LOGGEDIN", client.SourceMask(), row.Name, row.Name)
	}

	am.server.events.Fire(eventLoggedIn, client)
	if !justRegistered {
		am.server.noticeOpers("account_login",
			fmt.Sprintf("%s logged in to %s", client.Nick(), row.Name))
	}
	return nil
}

// Logout detaches the user's account. When reached through an explicit mode
// unset, the caller clears the mode bit itself and no MODE line is echoed
// here.
func (am *AccountManager) Logout(client *Client, inModeUnset bool) {
	if client.Account() == nil {
		return
	}
	accountName := client.AccountName()
	client.setAccount(nil)

	if !inModeUnset {
		if client.setMode("registered", false) && client.IsLocal() {
			client.SendFrom(client, "MODE", client.Nick(), "-r")
		}
	}

	if client.IsLocal() {
		client.Numeric("RPL_LOGGEDOUT", client.SourceMask())
	}
	am.server.events.Fire(eventAccountLogout, client)
	am.server.noticeOpers("account_logout",
		fmt.Sprintf("%s logged out of %s", client.Nick(), accountName))
}

// registeredModeHandler makes the registered user mode monotone: it can
// never be set directly, and unsetting it routes through Logout. The engine
// delegates entirely to this handler, so the bit is cleared here too;
// otherwise it would outlive the account.
func (am *AccountManager) registeredModeHandler(client *Client, set bool) bool {
	if set {
		return false
	}
	am.Logout(client, true)
	client.setMode("registered", false)
	return true
}

// MatchAccountMask resolves account mask tokens: $r matches any registered
// user, $r:NAME matches a specific account name case-insensitively.
func (am *AccountManager) MatchAccountMask(client *Client, mask string) bool {
	if !strings.HasPrefix(mask, "$r") {
		return false
	}
	account := client.Account()
	if account == nil {
		return false
	}
	if mask == "$r" {
		return true
	}
	if rest, found := strings.CutPrefix(mask, "$r:"); found {
		return utils.Casefold(rest) == utils.Casefold(account.Name)
	}
	return false
}

// SendBurst would send the account table to a newly linked server. No burst
// format has been negotiated with any peer implementation yet, so this only
// records that the hook ran.
func (am *AccountManager) SendBurst(peer *Peer) {
	am.server.logger.Debug("accounts",
		fmt.Sprintf("skipping account burst to %s: no burst format", peer.Name()))
}
