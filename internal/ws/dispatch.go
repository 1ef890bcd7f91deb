package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"

	"github.com/faforge/coordinator/internal/config"
	"github.com/faforge/coordinator/internal/game"
	"github.com/faforge/coordinator/internal/player"
)

// gameLaunchTimeout bounds how long a create/join waits for the player's
// client to reach the lobby before the association is reset
const gameLaunchTimeout = 30 * time.Second

type hostGameData struct {
	Title        string                 `json:"title"`
	Mod          string                 `json:"mod"`
	MapName      string                 `json:"mapname"`
	Password     string                 `json:"password"`
	Visibility   string                 `json:"visibility"`
	RatingMin    *int                   `json:"rating_min"`
	RatingMax    *int                   `json:"rating_max"`
	LobbyMode    string                 `json:"lobby_mode"`
	Participants []game.GameParticipant `json:"participants"`
}

type joinGameData struct {
	GameID   int    `json:"game_id"`
	Password string `json:"password"`
}

type gameStateData struct {
	State string `json:"state"`
}

type gameOptionData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

type playerOptionData struct {
	PlayerID int         `json:"player_id"`
	Key      string      `json:"key"`
	Value    interface{} `json:"value"`
}

type aiOptionData struct {
	AiName string      `json:"ai_name"`
	Key    string      `json:"key"`
	Value  interface{} `json:"value"`
}

type clearSlotData struct {
	Slot int `json:"slot"`
}

type gameModsData struct {
	UIDs []string `json:"uids"`
}

type gameModsCountData struct {
	Count int `json:"count"`
}

type armyScoreData struct {
	Army  int `json:"army"`
	Score int `json:"score"`
}

type armyOutcomeData struct {
	Army    int    `json:"army"`
	Outcome string `json:"outcome"`
	Score   int    `json:"score"`
}

type armyStatsData struct {
	Stats []game.ArmyStatistics `json:"stats"`
}

type restoreSessionData struct {
	GameID int `json:"game_id"`
}

type playerRefData struct {
	PlayerID int `json:"player_id"`
}

// HandleWebSocket authenticates and upgrades a game client connection
func HandleWebSocket(cfg *config.Config, engine *game.Engine, directory *player.Directory, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}

		playerID, login, err := parseSessionToken(token, cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade error: %v", err)
			return
		}

		client := &Client{
			conn:     conn,
			playerID: playerID,
			login:    login,
			send:     make(chan []byte, 256),
		}

		hub.Register(client)
		p := directory.Attach(playerID, login)

		go client.writePump()
		go client.readPump(engine, directory, hub, p)

		engine.OnPlayerOnline(p)
	}
}

// parseSessionToken validates a session JWT and extracts the player identity
func parseSessionToken(token, secret string) (int, string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return 0, "", errors.New("invalid token claims")
	}
	id, ok := claims["player_id"].(float64)
	if !ok {
		return 0, "", errors.New("token missing player_id")
	}
	login, ok := claims["login"].(string)
	if !ok {
		return 0, "", errors.New("token missing login")
	}
	return int(id), login, nil
}

// readPump reads messages from the connection and routes them to the engine.
// When the connection drops for good the player goes offline and is removed
// from its game; a reconnect that already replaced this client skips that.
func (c *Client) readPump(engine *game.Engine, directory *player.Directory, hub *Hub, p *game.Player) {
	defer func() {
		c.conn.Close()
		if hub.Unregister(c) {
			if p.CurrentGame() != nil {
				if err := engine.RemovePlayer(p); err != nil {
					log.Printf("[WS] Failed to remove player %s from game: %v", p, err)
				}
			}
			directory.Detach(c.playerID)
		}
	}()

	c.conn.SetReadLimit(64 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[WS] Read error for player %d: %v", c.playerID, err)
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}

		c.dispatch(engine, p, &msg)
	}
}

// dispatch routes one inbound message to the matching engine operation.
// Request errors go back to the client; telemetry errors are logged only.
func (c *Client) dispatch(engine *game.Engine, p *game.Player, msg *WSMessage) {
	var err error

	switch msg.Type {
	case "host_game":
		var data hostGameData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			err = c.hostGame(engine, p, &data)
		}

	case "join_game":
		var data joinGameData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			err = c.joinGame(engine, p, &data)
		}

	case "game_state":
		var data gameStateData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			err = engine.UpdatePlayerGameState(game.PlayerGameState(strings.ToUpper(data.State)), p)
		}

	case "game_option":
		var data gameOptionData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			err = engine.UpdateGameOption(p, data.Key, data.Value)
		}

	case "player_option":
		var data playerOptionData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			err = engine.UpdatePlayerOption(p, data.PlayerID, data.Key, data.Value)
		}

	case "ai_option":
		var data aiOptionData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			err = engine.UpdateAiOption(p, data.AiName, data.Key, data.Value)
		}

	case "clear_slot":
		var data clearSlotData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			engine.ClearSlot(p.CurrentGame(), data.Slot)
		}

	case "desync":
		engine.ReportDesync(p)

	case "game_mods":
		var data gameModsData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			engine.UpdateGameMods(p.CurrentGame(), data.UIDs)
		}

	case "game_mods_count":
		var data gameModsCountData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			engine.UpdateGameModsCount(p.CurrentGame(), data.Count)
		}

	case "army_score":
		var data armyScoreData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			engine.ReportArmyScore(p, data.Army, data.Score)
		}

	case "army_outcome":
		var data armyOutcomeData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			engine.ReportArmyOutcome(p, data.Army, game.Outcome(strings.ToUpper(data.Outcome)), data.Score)
		}

	case "army_stats":
		var data armyStatsData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			engine.ReportArmyStatistics(p, data.Stats)
		}

	case "enforce_rating":
		engine.EnforceRating(p)

	case "game_ended":
		err = engine.ReportGameEnded(p)

	case "mutually_agreed_draw":
		err = engine.MutuallyAgreeDraw(p)

	case "restore_game_session":
		var data restoreSessionData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			err = engine.RestoreGameSession(p, data.GameID)
		}

	case "disconnect_player":
		var data playerRefData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			engine.DisconnectPlayerFromGame(p, data.PlayerID)
		}

	case "player_disconnected":
		var data playerRefData
		if err = json.Unmarshal(msg.Data, &data); err == nil {
			engine.PlayerDisconnected(p, data.PlayerID)
		}

	default:
		c.sendError(fmt.Sprintf("unknown message type: %s", msg.Type))
		return
	}

	if err != nil {
		var reqErr *game.RequestError
		if errors.As(err, &reqErr) {
			c.sendRequestError(string(reqErr.Code), reqErr.Error())
		} else {
			log.Printf("[WS] %s from player %d failed: %v", msg.Type, c.playerID, err)
			c.sendError(err.Error())
		}
	}
}

func (c *Client) hostGame(engine *game.Engine, p *game.Player, data *hostGameData) error {
	visibility := game.GameVisibility(strings.ToUpper(data.Visibility))
	lobbyMode := game.LobbyModeDefault
	if data.LobbyMode != "" {
		lobbyMode = game.LobbyMode(strings.ToUpper(data.LobbyMode))
	}

	future, err := engine.CreateGame(data.Title, data.Mod, data.MapName, data.Password,
		visibility, data.RatingMin, data.RatingMax, p, lobbyMode, data.Participants)
	if err != nil {
		return err
	}
	go c.awaitGameLaunch(engine, p, future)
	return nil
}

func (c *Client) joinGame(engine *game.Engine, p *game.Player, data *joinGameData) error {
	future, err := engine.JoinGame(data.GameID, data.Password, p)
	if err != nil {
		return err
	}
	go c.awaitGameLaunch(engine, p, future)
	return nil
}

// awaitGameLaunch consumes a create/join future. The engine never times
// pending joins out on its own, so a client that never reaches the lobby is
// cleaned up here.
func (c *Client) awaitGameLaunch(engine *game.Engine, p *game.Player, future *game.GameFuture) {
	ctx, cancel := context.WithTimeout(context.Background(), gameLaunchTimeout)
	defer cancel()

	g, err := future.Get(ctx)
	switch {
	case err == nil:
		log.Printf("[WS] Player %s entered game %s", p, g)
	case errors.Is(err, game.ErrFutureCancelled):
		log.Printf("[WS] Pending game of player %s was cancelled", p)
	default:
		log.Printf("[WS] Player %s never reached the lobby: %v", p, err)
		if removeErr := engine.RemovePlayer(p); removeErr != nil {
			log.Printf("[WS] Failed to remove player %s after launch timeout: %v", p, removeErr)
		}
		c.sendRequestError("GAME_LAUNCH_TIMEOUT", "game process did not reach the lobby in time")
	}
}
