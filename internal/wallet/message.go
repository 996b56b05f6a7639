package wallet

import (
	"strings"
	"time"
)

// AddressPlaceholder is written into statements issued before the address is known.
const AddressPlaceholder = "{address}"

// Statement is a sign-in message in the Sign-In-With-Ethereum layout adapted for Polkadot.
type Statement struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	ChainID        string
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime time.Time
	RequestID      string
	Resources      []string
}

// String renders the statement exactly as the wallet is asked to sign it.
func (s Statement) String() string {
	address := s.Address
	if address == "" {
		address = AddressPlaceholder
	}

	var b strings.Builder

	b.WriteString(s.Domain)
	b.WriteString(" wants you to sign in with your Polkadot account:\n")
	b.WriteString(address)
	b.WriteString("\n\n")

	if s.Statement != "" {
		b.WriteString(s.Statement)
		b.WriteString("\n\n")
	}

	b.WriteString("URI: " + s.URI + "\n")
	b.WriteString("Version: 1\n")
	b.WriteString("Chain ID: " + s.ChainID + "\n")
	b.WriteString("Nonce: " + s.Nonce + "\n")
	b.WriteString("Issued At: " + s.IssuedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("Expiration Time: " + s.ExpirationTime.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("Request ID: " + s.RequestID)

	if len(s.Resources) > 0 {
		b.WriteString("\nResources:")

		for _, r := range s.Resources {
			b.WriteString("\n- " + r)
		}
	}

	return b.String()
}

// BindAddress substitutes the signer's address for the placeholder in a stored statement.
// Statements that already name an address are returned unchanged.
func BindAddress(message, address string) string {
	return strings.Replace(message, "\n"+AddressPlaceholder+"\n", "\n"+address+"\n", 1)
}
