package port_reader

import "io"

func NewLockedChannel(channel ByteChannel) *LockedChannel {
	return &LockedChannel{channel: channel}
}

// Read issues one bounded read while holding the lock.
func (c *LockedChannel) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel.Read(p)
}

// Write sends all of p while holding the lock, so a concurrent read
// never lands between two partial writes.
func (c *LockedChannel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	written := 0
	for written < len(p) {
		n, err := c.channel.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}
