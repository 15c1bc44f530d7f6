package messaging

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"printedge/engine"
)

// CommandHandler executes backoffice commands arriving on the command
// topic: manual reprints and test prints.
type CommandHandler struct {
	eng      *engine.SyncEngine
	clientID string
}

func NewCommandHandler(eng *engine.SyncEngine, clientID string) *CommandHandler {
	return &CommandHandler{eng: eng, clientID: clientID}
}

// Handle is the subscription callback. Commands addressed to another
// client are ignored; an empty client_id is a broadcast.
func (h *CommandHandler) Handle(payload []byte) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		log.Printf("command: decode: %v", err)
		return
	}
	if cmd.ClientID != "" && cmd.ClientID != h.clientID {
		return
	}

	switch cmd.Action {
	case "reprint":
		if cmd.OrderID == "" {
			log.Printf("command: reprint without order_id")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.eng.Reprint(ctx, cmd.OrderID); err != nil {
			log.Printf("command: reprint %s: %v", cmd.OrderID, err)
		}
	case "test_print":
		if err := h.eng.TestPrint(); err != nil {
			log.Printf("command: test print: %v", err)
		}
	default:
		log.Printf("command: unknown action %q", cmd.Action)
	}
}
