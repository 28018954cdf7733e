package listener

import (
	"context"
	"net/url"
	"time"

	"github.com/NotCoffee418/humidity_monitor/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	maxRetries     = 10
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second

	// The API pings every 30s, two missed pings means a dead peer
	readDeadline = 70 * time.Second
)

// StartListener connects to the API websocket at host and calls funcToCall for each reading.
// Reconnects with exponential backoff until ctx is done or retries run out.
func StartListener(ctx context.Context, host string, funcToCall func(reading *types.Reading)) {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	retryCount := 0

	for {
		if ctx.Err() != nil {
			log.Info().Msg("Shutting down listener")
			return
		}

		if retryCount > 0 {
			retryDelay := backoff(retryCount)
			log.Info().Msgf("Retrying connection in %v... (attempt %d/%d)", retryDelay, retryCount+1, maxRetries)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				log.Info().Msg("Interrupt received during retry wait, shutting down...")
				return
			}
		}

		log.Info().Msgf("Connecting to %s", u.String())

		dialer := *websocket.DefaultDialer
		dialer.HandshakeTimeout = 10 * time.Second
		c, _, err := dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			log.Warn().Err(err).Msg("Connection failed")
			retryCount++
			if retryCount >= maxRetries {
				log.Error().Msgf("Max retries (%d) reached. Giving up.", maxRetries)
				return
			}
			continue
		}

		log.Info().Msg("Connected! Accepting humidity readings.")
		retryCount = 0

		connectionBroken := handleConnection(ctx, c, funcToCall)
		c.Close()

		if !connectionBroken {
			return
		}
		log.Info().Msg("Connection lost, will retry...")
	}
}

func backoff(retryCount int) time.Duration {
	delay := time.Duration(1<<(retryCount-1)) * baseRetryDelay
	if delay > maxRetryDelay || delay <= 0 {
		delay = maxRetryDelay
	}
	return delay
}

// handleConnection returns true when the connection broke and false on a clean shutdown.
func handleConnection(
	ctx context.Context,
	c *websocket.Conn,
	funcToCall func(reading *types.Reading),
) bool {
	done := make(chan struct{})

	c.SetReadDeadline(time.Now().Add(readDeadline))
	c.SetPingHandler(func(appData string) error {
		c.SetReadDeadline(time.Now().Add(readDeadline))
		return c.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	go func() {
		defer close(done)
		for {
			messageType, message, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("WebSocket error")
				} else {
					log.Info().Err(err).Msg("Connection closed")
				}
				return
			}

			c.SetReadDeadline(time.Now().Add(readDeadline))

			if messageType != websocket.TextMessage {
				log.Debug().Int("type", messageType).Msg("Received unexpected message type")
				continue
			}
			if reading := types.ReadingFromJsonBytes(message); reading != nil {
				funcToCall(reading)
			} else {
				log.Warn().Str("message", string(message)).Msg("Failed to parse reading")
			}
		}
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		log.Info().Msg("Interrupt received, closing connection...")

		err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Warn().Err(err).Msg("Error sending close message")
		}

		// Wait for close confirmation or timeout
		select {
		case <-done:
		case <-time.After(time.Second):
			c.Close()
			<-done
		}
		return false
	}
}
