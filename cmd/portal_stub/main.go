package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"hiresphere/internal/chat/domain"
	"hiresphere/internal/chat/repository"
	"hiresphere/pkg/config"
	"hiresphere/pkg/database"
	"hiresphere/pkg/logger"
	"hiresphere/pkg/middlewares"
	"hiresphere/pkg/token"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

// Dev harness standing in for the HireSphere portal backend: serves the
// chat REST contracts from memory, consumes the client's publishes on
// chat:send, assigns server-side message ids and echoes them back on the
// room topics. Not for production use.
func main() {
	logger.Log = logger.Initialize(config.EnvConfig.PortalStub, config.EnvConfig.PortalStubLogPath)
	cfg := config.LoadConfig[config.PortalStub](config.EnvConfig.PortalStub, config.EnvConfig.PortalStubYAMLPath)

	redisClient, err := database.NewRedisClient(cfg.Redis.Addr, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	defer redisClient.Close()

	pubsub := repository.NewRedisPubSub(redisClient, 0)
	st := newStore()

	// bridge: client sends come in on chat:send, the echo goes back out on
	// the room topic with the server-assigned id and timestamp
	if _, err := pubsub.Subscribe(domain.SendDestination, func(payload []byte) {
		st.handleSend(pubsub, payload)
	}); err != nil {
		logger.Log.Fatal("subscribe send destination", zap.Error(err))
	}

	r := fiber.New()
	r.Use(fiber_log.New())

	// dev token minting stays outside the auth guard
	r.Post("/auth/token", issueToken)

	r.Use(middlewares.JWTMiddleware())

	r.Get("/chat/rooms", st.listRooms)
	r.Get("/chat/rooms/:id/history", st.history)
	r.Post("/chat/rooms/:id/read", st.markRead)
	r.Post("/chat/initiate", func(c *fiber.Ctx) error {
		return st.initiate(c, pubsub)
	})

	port := ":" + cfg.Port
	logger.Log.Info("portal stub listening on " + port)
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal("fiber listen", zap.Error(err))
	}
}

type tokenRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// issueToken mints a signed bearer token for local runs of the chat client.
func issueToken(c *fiber.Ctx) error {
	var req tokenRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad request"})
	}
	role := token.RoleType(req.Role)
	if role != token.RoleRecruiter && role != token.RoleCandidate {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown role"})
	}

	signed, err := token.GenerateJWT(req.UserID, role, "portal_stub")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "token generation failed"})
	}
	return c.JSON(fiber.Map{"token": signed})
}

type stubRoom struct {
	room     domain.Room
	messages []domain.ChatMessage
	unread   map[int64]int
}

type store struct {
	mu         sync.Mutex
	nextRoomID int64
	nextMsgID  int64
	rooms      map[int64]*stubRoom
}

func newStore() *store {
	return &store{rooms: make(map[int64]*stubRoom)}
}

func callerID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(middlewares.TokenUserID).(int64)
	return id
}

func (s *store) listRooms(c *fiber.Ctx) error {
	viewer := callerID(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Room, 0)
	for _, sr := range s.rooms {
		if !sr.room.HasParticipant(viewer) {
			continue
		}
		room := sr.room
		room.UnreadCount = sr.unread[viewer]
		out = append(out, room)
	}
	return c.JSON(out)
}

func (s *store) history(c *fiber.Ctx) error {
	roomID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad room id"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.rooms[roomID]
	if !ok || !sr.room.HasParticipant(callerID(c)) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "room not found"})
	}
	return c.JSON(sr.messages)
}

func (s *store) markRead(c *fiber.Ctx) error {
	roomID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad room id"})
	}
	viewer := callerID(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	sr, ok := s.rooms[roomID]
	if !ok || !sr.room.HasParticipant(viewer) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "room not found"})
	}
	sr.unread[viewer] = 0
	return c.SendStatus(fiber.StatusNoContent)
}

type initiateRequest struct {
	CandidateID   int64  `json:"candidate_id"`
	CandidateName string `json:"candidate_name"`
	RecruiterName string `json:"recruiter_name"`
}

// initiate creates a recruiter→candidate room and announces it on the
// candidate's notification topic.
func (s *store) initiate(c *fiber.Ctx, pubsub *repository.RedisPubSub) error {
	if c.Locals(middlewares.TokenRole) != string(token.RoleRecruiter) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "only recruiters initiate"})
	}

	var req initiateRequest
	if err := c.BodyParser(&req); err != nil || req.CandidateID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad request"})
	}

	s.mu.Lock()
	s.nextRoomID++
	room := domain.Room{
		ID:            s.nextRoomID,
		RecruiterID:   callerID(c),
		RecruiterName: req.RecruiterName,
		CandidateID:   req.CandidateID,
		CandidateName: req.CandidateName,
	}
	s.rooms[room.ID] = &stubRoom{room: room, unread: make(map[int64]int)}
	s.mu.Unlock()

	if err := pubsub.Publish(domain.UserTopic(req.CandidateID), room); err != nil {
		logger.Log.Errorf("room announce failed:", err, zap.Int64("room_id", room.ID))
	}
	return c.JSON(room)
}

// handleSend assigns the server id and timestamp to a composed message,
// stores it, bumps the receiver's unread and echoes it on the room topic.
func (s *store) handleSend(pubsub *repository.RedisPubSub, payload []byte) {
	var out domain.OutboundMessage
	if err := json.Unmarshal(payload, &out); err != nil {
		logger.Log.Errorf("bad send payload:", err)
		return
	}

	s.mu.Lock()
	sr, ok := s.rooms[out.RoomID]
	if !ok || !sr.room.HasParticipant(out.SenderID) {
		s.mu.Unlock()
		logger.Log.Warn("send for unknown room or foreign sender dropped",
			zap.Int64("room_id", out.RoomID), zap.Int64("sender_id", out.SenderID))
		return
	}
	s.nextMsgID++
	msg := domain.ChatMessage{
		ID:        s.nextMsgID,
		RoomID:    out.RoomID,
		SenderID:  out.SenderID,
		Content:   out.Content,
		Timestamp: time.Now().Unix(),
	}
	sr.messages = append(sr.messages, msg)
	sr.room.LastMessage = msg.Content
	sr.room.LastMessageTimestamp = msg.Timestamp
	if other := otherSide(sr.room, out.SenderID); other != 0 {
		sr.unread[other]++
	}
	s.mu.Unlock()

	if err := pubsub.Publish(domain.RoomTopic(msg.RoomID), msg); err != nil {
		logger.Log.Errorf("message echo failed:", err, zap.Int64("room_id", msg.RoomID))
	}
}

func otherSide(room domain.Room, userID int64) int64 {
	if userID == room.RecruiterID {
		return room.CandidateID
	}
	if userID == room.CandidateID {
		return room.RecruiterID
	}
	return 0
}
