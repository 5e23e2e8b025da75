package sftp

import (
	"crypto/subtle"
	"io"
	"net"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/TWTom041/DiscordFS-SFTP/config"
	"github.com/TWTom041/DiscordFS-SFTP/dfs"
	"github.com/TWTom041/DiscordFS-SFTP/fs"
)

// server serves the facade over SSH connections.
type server struct {
	fsys      *dfs.FS
	addr      string
	sshConfig *ssh.ServerConfig
	listener  net.Listener
}

func newServer(fsys *dfs.FS, cfg *config.Config, hostKey []byte) (*server, error) {
	sshConfig := &ssh.ServerConfig{
		NoClientAuth:      cfg.SFTP.NoAuth,
		PasswordCallback:  passwordCallback(cfg.SFTP.Auths),
		PublicKeyCallback: publicKeyCallback(cfg.SFTP.Auths),
		ServerVersion:     "SSH-2.0-dsfs " + fs.Version,
	}
	signer, err := ssh.ParsePrivateKey(hostKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse host key")
	}
	sshConfig.AddHostKey(signer)
	return &server{
		fsys:      fsys,
		addr:      cfg.SFTPAddr(),
		sshConfig: sshConfig,
	}, nil
}

// String converts it to printable
func (s *server) String() string {
	return "sftp server"
}

func passwordCallback(auths []config.Auth) func(ssh.ConnMetadata, []byte) (*ssh.Permissions, error) {
	return func(meta ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
		for _, auth := range auths {
			if auth.Username != meta.User() || auth.Password == nil {
				continue
			}
			if subtle.ConstantTimeCompare([]byte(*auth.Password), pass) == 1 {
				return nil, nil
			}
		}
		return nil, errors.Errorf("password rejected for %q", meta.User())
	}
}

func publicKeyCallback(auths []config.Auth) func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
	return func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
		offered := key.Marshal()
		for _, auth := range auths {
			if auth.Username != meta.User() || auth.PubKey == "" {
				continue
			}
			authorized, _, _, _, err := ssh.ParseAuthorizedKey([]byte(auth.PubKey))
			if err != nil {
				fs.Errorf(nil, "bad authorized key for %q: %v", auth.Username, err)
				continue
			}
			if subtle.ConstantTimeCompare(authorized.Marshal(), offered) == 1 {
				return nil, nil
			}
		}
		return nil, errors.Errorf("public key rejected for %q", meta.User())
	}
}

// Serve accepts connections until the listener is closed.
func (s *server) Serve() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.listener = listener
	fs.Logf(s, "listening on %v", listener.Addr())
	for {
		conn, err := listener.Accept()
		if err != nil {
			return errors.Wrap(err, "listener terminated")
		}
		go s.serveConn(conn)
	}
}

// Close shuts the listener down.
func (s *server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *server) serveConn(conn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.sshConfig)
	if err != nil {
		fs.Debugf(s, "ssh handshake failed: %v", err)
		return
	}
	defer func() {
		_ = sshConn.Close()
	}()
	fs.Infof(s, "connection from %v user %q", sshConn.RemoteAddr(), sshConn.User())
	go ssh.DiscardRequests(reqs)
	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChan.Accept()
		if err != nil {
			fs.Debugf(s, "failed to accept channel: %v", err)
			continue
		}
		go acceptSubsystem(requests)
		go s.serveChannel(channel)
	}
}

// acceptSubsystem answers session requests, agreeing only to the sftp
// subsystem.
func acceptSubsystem(in <-chan *ssh.Request) {
	for req := range in {
		ok := req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp"
		_ = req.Reply(ok, nil)
	}
}

func (s *server) serveChannel(channel ssh.Channel) {
	requestServer := sftp.NewRequestServer(channel, newHandlers(s.fsys))
	if err := requestServer.Serve(); err != nil && err != io.EOF {
		fs.Debugf(s, "session ended: %v", err)
	}
	_ = requestServer.Close()
}
