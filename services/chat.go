package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-api/models"
	"storefront-api/utils"
)

// FallbackReply is sent when the language model cannot answer.
const FallbackReply = "Xin lỗi, hiện tại mình chưa thể trả lời. Bạn vui lòng thử lại sau ít phút nhé!"

const catalogLimit = 50

var ErrNoIdentity = errors.New("chat identity requires a user or a guest token")

var ErrEmptyMessage = errors.New("chat message is empty")

// Identity scopes a conversation to a user or, failing that, a guest token.
type Identity struct {
	UserID     *primitive.ObjectID
	GuestToken string
}

// Filter selects the identity's messages on exactly one axis.
func (id Identity) Filter() (bson.M, error) {
	switch {
	case id.UserID != nil:
		return bson.M{"userId": *id.UserID}, nil
	case id.GuestToken != "":
		return bson.M{"guest_token": id.GuestToken, "userId": bson.M{"$exists": false}}, nil
	default:
		return nil, ErrNoIdentity
	}
}

func (id Identity) stamp(m *models.ChatMessage) {
	if id.UserID != nil {
		m.UserID = id.UserID
		return
	}
	m.GuestToken = id.GuestToken
}

// CatalogEntry is the product view the assistant is told about.
type CatalogEntry struct {
	Name       string   `bson:"name"`
	Price      float64  `bson:"price"`
	Discount   float64  `bson:"discount"`
	Stock      int      `bson:"stock"`
	Categories []string `bson:"categories"`
}

// ChatStore persists messages and exposes the catalog.
type ChatStore interface {
	SaveMessage(ctx context.Context, m *models.ChatMessage) error
	RecentMessages(ctx context.Context, id Identity, limit int) ([]models.ChatMessage, error)
	ClearMessages(ctx context.Context, id Identity) (int64, error)
	Catalog(ctx context.Context, limit int) ([]CatalogEntry, error)
}

// LLM generates a reply from a system prompt, prior turns and the new message.
type LLM interface {
	Generate(ctx context.Context, system string, history []models.ChatMessage, message string) (string, error)
}

// ChatRelay stores both sides of the conversation and forwards it to the LLM.
type ChatRelay struct {
	Store        ChatStore
	LLM          LLM
	HistoryLimit int
	Timeout      time.Duration

	now func() time.Time
}

func NewChatRelay(store ChatStore, llm LLM, historyLimit int, timeout time.Duration) *ChatRelay {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatRelay{Store: store, LLM: llm, HistoryLimit: historyLimit, Timeout: timeout, now: time.Now}
}

// Reply persists message, asks the LLM and persists its answer. LLM errors
// degrade to FallbackReply; only storage errors are returned.
func (c *ChatRelay) Reply(ctx context.Context, id Identity, message string) (*models.ChatMessage, bool, error) {
	if _, err := id.Filter(); err != nil {
		return nil, false, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, false, ErrEmptyMessage
	}

	userMsg := &models.ChatMessage{Sender: models.SenderUser, Message: message, CreatedAt: c.now()}
	id.stamp(userMsg)
	if err := c.Store.SaveMessage(ctx, userMsg); err != nil {
		return nil, false, fmt.Errorf("save user message: %w", err)
	}

	history, err := c.Store.RecentMessages(ctx, id, c.HistoryLimit+1)
	if err != nil {
		return nil, false, fmt.Errorf("load history: %w", err)
	}
	history = withoutMessage(history, userMsg.ID)
	if len(history) > c.HistoryLimit {
		history = history[len(history)-c.HistoryLimit:]
	}

	catalog, err := c.Store.Catalog(ctx, catalogLimit)
	if err != nil {
		slog.Warn("chat: catalog unavailable", slog.Any("err", err))
	}

	reply, fallback := c.generate(ctx, BuildSystemPrompt(catalog), history, message)

	botMsg := &models.ChatMessage{Sender: models.SenderBot, Message: reply, CreatedAt: c.now()}
	id.stamp(botMsg)
	if err := c.Store.SaveMessage(ctx, botMsg); err != nil {
		return nil, fallback, fmt.Errorf("save bot message: %w", err)
	}
	return botMsg, fallback, nil
}

func (c *ChatRelay) generate(ctx context.Context, system string, history []models.ChatMessage, message string) (string, bool) {
	if c.LLM == nil {
		return FallbackReply, true
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	reply, err := c.LLM.Generate(ctx, system, history, message)
	if err != nil {
		slog.Error("chat: llm call failed", slog.Any("err", err))
		return FallbackReply, true
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return FallbackReply, true
	}
	return reply, false
}

// History returns the identity's messages, oldest first.
func (c *ChatRelay) History(ctx context.Context, id Identity, limit int) ([]models.ChatMessage, error) {
	return c.Store.RecentMessages(ctx, id, limit)
}

// Clear deletes the identity's conversation.
func (c *ChatRelay) Clear(ctx context.Context, id Identity) (int64, error) {
	return c.Store.ClearMessages(ctx, id)
}

func withoutMessage(msgs []models.ChatMessage, id primitive.ObjectID) []models.ChatMessage {
	out := msgs[:0:0]
	for _, m := range msgs {
		if !id.IsZero() && m.ID == id {
			continue
		}
		out = append(out, m)
	}
	return out
}

// BuildSystemPrompt describes the assistant's role and the current catalog.
func BuildSystemPrompt(catalog []CatalogEntry) string {
	var b strings.Builder
	b.WriteString("Bạn là trợ lý bán hàng của cửa hàng trực tuyến. ")
	b.WriteString("Trả lời ngắn gọn, thân thiện, bằng ngôn ngữ của khách hàng. ")
	b.WriteString("Chỉ giới thiệu sản phẩm có trong danh sách dưới đây; nếu không chắc chắn, hãy nói rằng bạn không biết.\n")
	if len(catalog) == 0 {
		b.WriteString("\nHiện chưa có dữ liệu sản phẩm.")
		return b.String()
	}
	b.WriteString("\nDanh sách sản phẩm:\n")
	for _, p := range catalog {
		fmt.Fprintf(&b, "- %s", p.Name)
		if len(p.Categories) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(p.Categories, ", "))
		}
		price := models.Product{Price: p.Price, Discount: p.Discount}.FinalPrice()
		fmt.Fprintf(&b, ": %s", utils.FormatVND(price))
		if p.Discount > 0 {
			fmt.Fprintf(&b, " (giảm %.0f%%)", p.Discount)
		}
		if p.Stock <= 0 {
			b.WriteString(", hết hàng")
		} else {
			fmt.Fprintf(&b, ", còn %d", p.Stock)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// MongoChatStore keeps messages in chatmessages and reads published products.
type MongoChatStore struct {
	DB *mongo.Database
}

func (s *MongoChatStore) SaveMessage(ctx context.Context, m *models.ChatMessage) error {
	res, err := s.DB.Collection(utils.ChatCollection).InsertOne(ctx, m)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		m.ID = oid
	}
	return nil
}

func (s *MongoChatStore) RecentMessages(ctx context.Context, id Identity, limit int) ([]models.ChatMessage, error) {
	filter, err := id.Filter()
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.DB.Collection(utils.ChatCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []models.ChatMessage{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *MongoChatStore) ClearMessages(ctx context.Context, id Identity) (int64, error) {
	filter, err := id.Filter()
	if err != nil {
		return 0, err
	}
	res, err := s.DB.Collection(utils.ChatCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *MongoChatStore) Catalog(ctx context.Context, limit int) ([]CatalogEntry, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "publish", Value: true}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: utils.CategoriesCollection},
			{Key: "localField", Value: "category"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "cats"},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "name", Value: 1},
			{Key: "price", Value: 1},
			{Key: "discount", Value: 1},
			{Key: "stock", Value: 1},
			{Key: "categories", Value: "$cats.name"},
		}}},
	}
	cursor, err := s.DB.Collection(utils.ProductsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []CatalogEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
