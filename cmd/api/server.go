package main

import (
	"github.com/kexinw/sit-marketplace-api/internal/auth"
	"github.com/kexinw/sit-marketplace-api/internal/data"
	"github.com/kexinw/sit-marketplace-api/internal/events"
	"github.com/kexinw/sit-marketplace-api/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Server wires the stores, auth manager and event publisher behind the
// HTTP handlers.
type Server struct {
	users    *data.UsersStore
	products *data.ProductsStore
	posts    *data.PostsStore
	chats    *data.ChatsStore
	auth     *auth.JWTManager
	events   events.Publisher
}

// newServer returns a ready-to-use Server.
func newServer(users *data.UsersStore, products *data.ProductsStore, posts *data.PostsStore, chats *data.ChatsStore, jwtMgr *auth.JWTManager, pub events.Publisher) *Server {
	return &Server{
		users:    users,
		products: products,
		posts:    posts,
		chats:    chats,
		auth:     jwtMgr,
		events:   pub,
	}
}

// routes mounts every endpoint. Register and login sit behind the rate
// limiter; everything under /api requires a bearer token. Each mutation
// takes the acting user from the verified claims, never from the body.
func (s *Server) routes(app *fiber.App, limiter *middleware.LimiterStore) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authGroup := app.Group("/auth", middleware.RateLimit(limiter))
	authGroup.Post("/register", s.handleRegister)
	authGroup.Post("/login", s.handleLogin)

	api := app.Group("/api", s.requireAuth)

	api.Post("/products", s.handleCreateProduct)
	api.Get("/products", s.handleListProducts)
	api.Get("/products/:id", s.handleGetProduct)
	api.Patch("/products/:id", s.handleEditProduct)
	api.Delete("/products/:id", s.handleRemoveProduct)
	api.Post("/products/:id/reserve", s.handleReserveProduct)
	api.Post("/products/:id/buy", s.handleSellProduct)
	api.Post("/products/:id/relist", s.handleRelistProduct)

	api.Post("/posts", s.handleCreatePost)
	api.Get("/posts", s.handleListPosts)
	api.Get("/posts/:id", s.handleGetPost)
	api.Patch("/posts/:id", s.handleEditPost)
	api.Delete("/posts/:id", s.handleRemovePost)
	api.Post("/posts/:id/sellers", s.handleAddPossibleSeller)
	api.Post("/posts/:id/match", s.handleMatchPost)
	api.Post("/posts/:id/retrieve", s.handleRetrievePost)
	api.Post("/posts/:id/repost", s.handleRepostPost)

	api.Get("/users", s.handleListUsers)
	api.Get("/users/:id", s.handleGetUser)
	api.Post("/users/:id/comments", s.handleAddComment)
	api.Put("/users/:id/comments/:tx", s.handleEditComment)
	api.Get("/users/:id/comments/:tx", s.handleGetComment)

	api.Post("/favorites", s.handleAddFavorite)
	api.Delete("/favorites/:itemId", s.handleRemoveFavorite)

	api.Post("/chats", s.handleCreateChat)
	api.Get("/chats", s.handleGetChatByParticipants)
	api.Get("/chats/:id", s.handleGetChat)
	api.Post("/chats/:id/messages", s.handleAddMessage)
}
