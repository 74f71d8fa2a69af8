package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

// Cliente de rajada: conecta no /ws e manda set_pixel sem parar
// para ver o rate limiter e o broadcast trabalhando.
func main() {
	url := "ws://localhost:8080/ws"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Printf("Erro ao conectar: %s\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("Conectado em %s\n", url)

	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				fmt.Printf("Leitura encerrada: %s\n", err)
				os.Exit(0)
			}
			var msg struct {
				Type string `json:"type"`
				Code string `json:"code"`
			}
			_ = json.Unmarshal(raw, &msg)
			if msg.Type == "error" {
				fmt.Printf("<- %s (%s)\n", msg.Type, msg.Code)
			} else {
				fmt.Printf("<- %s\n", msg.Type)
			}
		}
	}()

	cores := []string{"#ff0000", "#00ff00", "#0000ff", "#ffff00", "#ff00ff"}
	for i := 0; ; i++ {
		req := map[string]any{
			"type":  "set_pixel",
			"x":     rand.Intn(4000),
			"y":     rand.Intn(4000),
			"color": cores[i%len(cores)],
		}
		if err := conn.WriteJSON(req); err != nil {
			fmt.Printf("Erro ao enviar: %s\n", err)
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}
