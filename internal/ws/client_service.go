package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/faforge/coordinator/internal/game"
)

// gameEventsChannel carries game snapshots and results between server nodes
const gameEventsChannel = "game_events"

// ClientService delivers engine commands to connected game clients. Commands
// address a single player and go straight through the hub; snapshots and
// results fan out via redis so every node delivers to its local clients.
type ClientService struct {
	hub         *Hub
	rdb         *redis.Client
	broadcaster *broadcaster
}

func NewClientService(hub *Hub, rdb *redis.Client) *ClientService {
	s := &ClientService{hub: hub, rdb: rdb}
	s.broadcaster = newBroadcaster(s.publishGameInfo)
	return s
}

// StartGameProcess tells the player's client to launch the game executable
func (s *ClientService) StartGameProcess(g *game.Game, player *game.Player) {
	s.hub.SendToPlayer(player.ID, map[string]interface{}{
		"type":            "start_game_process",
		"game_id":         g.ID,
		"mod":             g.FeaturedMod().TechnicalName,
		"map_folder_name": g.MapFolderName(),
	})
}

// HostGame tells the host's client to open its lobby port
func (s *ClientService) HostGame(g *game.Game, host *game.Player) {
	s.hub.SendToPlayer(host.ID, map[string]interface{}{
		"type":            "host_game",
		"map_folder_name": g.MapFolderName(),
	})
}

// ConnectToHost tells the player's client to connect to the game's host
func (s *ClientService) ConnectToHost(player *game.Player, g *game.Game) {
	host := g.Host()
	if host == nil {
		log.Printf("[WS] Cannot connect player %s to host of game %s: no host", player, g)
		return
	}
	s.hub.SendToPlayer(player.ID, map[string]interface{}{
		"type":      "connect_to_host",
		"player_id": host.ID,
		"login":     host.Login,
	})
}

// ConnectToPeer tells the player's client to establish a connection to other.
// The offerer side initiates the connection.
func (s *ClientService) ConnectToPeer(player, other *game.Player, offerer bool) {
	s.hub.SendToPlayer(player.ID, map[string]interface{}{
		"type":      "connect_to_peer",
		"player_id": other.ID,
		"login":     other.Login,
		"offerer":   offerer,
	})
}

// DisconnectPlayerFromGame tells the receivers' clients to drop their
// connections to the given player
func (s *ClientService) DisconnectPlayerFromGame(playerID int, receivers []*game.Player) {
	for _, receiver := range receivers {
		s.hub.SendToPlayer(receiver.ID, map[string]interface{}{
			"type":      "disconnect_from_game",
			"player_id": playerID,
		})
	}
}

// SendGameList sends the full game list to one player
func (s *ClientService) SendGameList(games []*game.GameResponse, recipient *game.Player) {
	s.hub.SendToPlayer(recipient.ID, map[string]interface{}{
		"type":  "game_list",
		"games": games,
	})
}

// BroadcastGameResult publishes a finished game's result to all clients
func (s *ClientService) BroadcastGameResult(msg *game.GameResultMessage) {
	s.publishEvent(map[string]interface{}{
		"type":   "game_result",
		"result": msg,
	})
}

// BroadcastDelayed schedules a game snapshot for broadcast through the
// debouncer
func (s *ClientService) BroadcastDelayed(response *game.GameResponse, minDelay, maxDelay time.Duration,
	keyFn func(*game.GameResponse) string, aggregate game.ResponseAggregator) {
	s.broadcaster.Submit(response, minDelay, maxDelay, keyFn, aggregate)
}

func (s *ClientService) publishGameInfo(response *game.GameResponse) {
	s.publishEvent(map[string]interface{}{
		"type": "game_info",
		"game": response,
	})
}

// publishEvent pushes an event onto the redis channel. Without redis (tests,
// single-node dev setups) the event goes straight to the local hub.
func (s *ClientService) publishEvent(payload map[string]interface{}) {
	if s.rdb == nil {
		s.hub.Broadcast(payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[WS] Failed to encode game event: %v", err)
		return
	}
	if err := s.rdb.Publish(context.Background(), gameEventsChannel, data).Err(); err != nil {
		log.Printf("[WS] Failed to publish game event: %v", err)
		// Degrade to local delivery so this node's clients still see it
		s.hub.Broadcast(payload)
	}
}
