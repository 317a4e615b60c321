package realtime

// Hub owns the set of connected clients and routes each event to the
// clients watching its topic. A client with no topics is a firehose
// subscriber and receives everything.
type Hub struct {
	clients map[*Client]bool

	broadcast chan message

	register chan *Client

	unregister chan *Client
}

type message struct {
	topic string
	data  []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Broadcast fans data out to every client subscribed to topic. An empty
// topic reaches all clients.
func (h *Hub) Broadcast(topic string, data []byte) {
	h.broadcast <- message{topic: topic, data: data}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				_ = client.conn.Close()
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.wants(msg.topic) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					delete(h.clients, client)
					close(client.send)
					_ = client.conn.Close()
				}
			}
		}
	}
}
