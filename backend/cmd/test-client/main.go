package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "адрес сервера")
	count := flag.Int("n", 20, "сколько сообщений прочитать")
	cmd := flag.String("cmd", "", "команда после подключения: pause, resume или step")
	flag.Parse()

	// Подключаемся к серверу
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	log.Printf("Подключение к %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Ошибка подключения: %v", err)
	}
	defer conn.Close()

	log.Printf("Успешно подключен")

	now := time.Now().UnixNano() / int64(time.Millisecond)
	if err := conn.WriteJSON(map[string]interface{}{"type": "ping", "client_time": now}); err != nil {
		log.Fatalf("Ошибка отправки ping: %v", err)
	}
	if *cmd != "" {
		if err := conn.WriteJSON(map[string]interface{}{"type": "cmd", "cmd": *cmd, "client_time": now}); err != nil {
			log.Fatalf("Ошибка отправки команды: %v", err)
		}
	}

	// Читаем сообщения от сервера
	for i := 0; i < *count; i++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Ошибка чтения сообщения: %v", err)
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Ошибка разбора сообщения: %v", err)
			continue
		}

		msgType, ok := msg["type"].(string)
		if !ok {
			log.Printf("Сообщение без типа: %v", msg)
			continue
		}

		switch msgType {
		case "info", "error":
			log.Printf("%s: %v", msgType, msg["message"])

		case "create":
			log.Printf("CREATE: %v (%v)", msg["id"], msg["object_type"])

		case "state":
			bodies, _ := msg["bodies"].([]interface{})
			log.Printf("STATE: шаг %v, тел %d", msg["step"], len(bodies))

		case "collision":
			log.Printf("COLLISION: %v и %v на шаге %v, проникновение %v",
				msg["entity_a"], msg["entity_b"], msg["step"], msg["penetration"])

		case "pong":
			if clientTime, ok := msg["client_time"].(float64); ok {
				rtt := time.Now().UnixNano()/int64(time.Millisecond) - int64(clientTime)
				log.Printf("PONG: RTT %d мс", rtt)
			}

		case "cmd_ack":
			log.Printf("ACK: %v, шаг %v, пауза %v", msg["cmd"], msg["step"], msg["paused"])

		default:
			log.Printf("Сообщение типа %s: %v", msgType, msg)
		}
	}

	log.Printf("Тест завершен")
}
