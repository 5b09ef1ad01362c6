package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
)

// connection returns a pooled, bound connection to host, dialling a new one when the pooled
// connection is missing or closing.
func (d *LDAPDirectory) connection(ctx context.Context, host string) (*ldap.Conn, error) {
	d.mu.Lock()
	conn, ok := d.conns[host]
	if ok && conn.IsClosing() {
		delete(d.conns, host)
		ok = false
	}
	d.mu.Unlock()
	if ok {
		return conn, nil
	}

	conn, err := d.dial(ctx, host)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.conns[host]; ok && !existing.IsClosing() {
		// another caller dialled the same host meanwhile
		conn.Close()
		return existing, nil
	}
	if len(d.conns) >= d.config.MaxPoolSize && d.config.MaxPoolSize > 0 {
		d.logger.Directory("Connection pool full, connection will not be reused", "host", host)
		return conn, nil
	}
	d.conns[host] = conn
	return conn, nil
}

// drop closes and forgets the pooled connection to host, if it is conn.
func (d *LDAPDirectory) drop(host string, conn *ldap.Conn) {
	d.mu.Lock()
	if pooled, ok := d.conns[host]; ok && pooled == conn {
		delete(d.conns, host)
	}
	d.mu.Unlock()
	conn.Close()
}

func (d *LDAPDirectory) pooled(host string, conn *ldap.Conn) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[host] == conn
}

func (d *LDAPDirectory) dial(ctx context.Context, host string) (*ldap.Conn, error) {
	address := fmt.Sprintf("%s://%s", d.config.scheme(), net.JoinHostPort(host, strconv.Itoa(d.config.Port)))

	dialer := &net.Dialer{Timeout: d.config.DialTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	opts := []ldap.DialOpt{ldap.DialWithDialer(dialer)}
	if d.config.UseTLS {
		opts = append(opts, ldap.DialWithTLSConfig(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}))
	}

	conn, err := ldap.DialURL(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	if d.config.DialTimeout > 0 {
		conn.SetTimeout(d.config.DialTimeout)
	}

	if err := d.bind(conn, host); err != nil {
		conn.Close()
		return nil, err
	}

	d.logger.Directory("Connected to directory", "address", address, "kerberos", d.config.Kerberos.Enabled())
	return conn, nil
}

func (d *LDAPDirectory) bind(conn *ldap.Conn, host string) error {
	switch {
	case d.config.Kerberos.Enabled():
		client, err := d.kerberosClient()
		if err != nil {
			return fmt.Errorf("kerberos client: %w", err)
		}
		defer client.Close()

		if err := conn.GSSAPIBind(client, "ldap/"+host, ""); err != nil {
			return fmt.Errorf("gssapi bind to %s: %w", host, err)
		}
	case d.config.BindDN != "":
		if err := conn.Bind(d.config.BindDN, d.config.BindPassword); err != nil {
			return fmt.Errorf("bind to %s as %s: %w", host, d.config.BindDN, err)
		}
	default:
		if err := conn.UnauthenticatedBind(""); err != nil {
			return fmt.Errorf("anonymous bind to %s: %w", host, err)
		}
	}
	return nil
}

func (d *LDAPDirectory) kerberosClient() (*gssapi.Client, error) {
	k := d.config.Kerberos
	if k.CCache != "" {
		return gssapi.NewClientFromCCache(k.CCache, k.Krb5Config)
	}
	return gssapi.NewClientWithKeytab(k.User, k.Realm, k.Keytab, k.Krb5Config)
}

// Close closes every pooled connection.
func (d *LDAPDirectory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for host, conn := range d.conns {
		conn.Close()
		delete(d.conns, host)
	}
	return nil
}
