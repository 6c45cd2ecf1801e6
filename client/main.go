package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
	"github.com/wfunc/bingo/logger"
	"github.com/wfunc/bingo/network"
)

// createRoom asks the server for a new room and returns its id.
func createRoom(host string, maxPlayers int) (string, error) {
	body := fmt.Sprintf(`{"max_players": %d}`, maxPlayers)
	resp, err := http.Post("http://"+host+"/rooms", "application/json", strings.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create room: %s", resp.Status)
	}

	var out struct {
		RoomID string `json:"room_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.RoomID, nil
}

func main() {
	host := pflag.String("server", "localhost:8080", "game server host:port")
	roomID := pflag.String("room", "", "room to join")
	name := pflag.String("name", "", "player name")
	create := pflag.Bool("create", false, "create a room before joining")
	players := pflag.Int("players", 2, "capacity of the created room")
	heartbeat := pflag.Duration("heartbeat", 10*time.Second, "heartbeat interval")
	pflag.Parse()

	if err := logger.Init("info", true); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *create {
		id, err := createRoom(*host, *players)
		if err != nil {
			logger.Log.Fatalf("Create room failed: %v", err)
		}
		*roomID = id
		logger.Log.Infof("Created room %s", id)
	}
	if *roomID == "" {
		logger.Log.Fatal("--room or --create is required")
	}
	if *name == "" {
		*name = fmt.Sprintf("bot-%04d", rand.Intn(10000))
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	logger.Log.Infof("Connecting to %s", u.String())
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	send := func(msgID uint16, v interface{}) error {
		var data []byte
		if v != nil {
			var err error
			if data, err = json.Marshal(v); err != nil {
				return err
			}
		}
		packet, err := network.EncodePacket(msgID, data)
		if err != nil {
			return err
		}
		return c.WriteMessage(websocket.BinaryMessage, packet)
	}

	bot := NewBot(*name, *roomID, rand.New(rand.NewSource(time.Now().UnixNano())), send)

	// Read loop
	packets := make(chan *network.Packet)
	go func() {
		defer close(packets)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				logger.Log.Infof("Read error: %v", err)
				return
			}
			packet, err := network.DecodePacket(message)
			if err != nil {
				logger.Log.Warnf("Received invalid packet of size %d", len(message))
				continue
			}
			packets <- packet
		}
	}()

	if err := bot.Join(); err != nil {
		logger.Log.Fatalf("Join failed: %v", err)
	}

	ticker := time.NewTicker(*heartbeat)
	defer ticker.Stop()

	for {
		select {
		case packet, ok := <-packets:
			if !ok {
				return
			}
			done, err := bot.Handle(packet)
			if err != nil {
				logger.Log.Errorf("%v", err)
			}
			if done {
				return
			}
		case <-ticker.C:
			if err := send(network.MsgTypeHeartbeat, nil); err != nil {
				logger.Log.Warnf("Heartbeat failed: %v", err)
			}
		case <-interrupt:
			logger.Log.Info("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				logger.Log.Warnf("Write close error: %v", err)
			}
			return
		}
	}
}
