package sftp

// Channel is the transport the session multiplexes its requests over.
//
// It delivers whole protocol packets: each packet starts at the type
// byte, with the uint32 length prefix handled inside the transport. The
// production implementation in internal/transport/ssh frames packets over
// an SSH "sftp" subsystem; tests substitute in-memory channels.
type Channel interface {
	// Send transmits one packet. It blocks only on local buffering,
	// never on a protocol round trip.
	Send(pkt []byte) error

	// Recv blocks until the next packet arrives and returns its
	// contents starting at the type byte. It returns io.EOF when the
	// peer closes the channel cleanly.
	Recv() ([]byte, error)

	// Close tears the transport down. In-flight requests on the
	// session fail with ConnectionLost on their next wait.
	Close() error
}
