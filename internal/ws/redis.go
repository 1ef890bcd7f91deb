package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// StartGameEventSubscriber subscribes to the game events channel and fans
// incoming snapshots and results out to this node's connected clients. Events
// originate from any node's ClientService.
func StartGameEventSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; game event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, gameEventsChannel)
	ch := pubsub.Channel()
	go func() {
		log.Printf("[WS] %s subscriber started", gameEventsChannel)
		for msg := range ch {
			var payload map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				log.Printf("[WS] invalid game event payload: %v", err)
				continue
			}

			typeStr, _ := payload["type"].(string)
			switch typeStr {
			case "game_info", "game_result":
				hub.Broadcast(payload)
			default:
				log.Printf("[WS] unknown game event type: %s", typeStr)
			}
		}
	}()
}
