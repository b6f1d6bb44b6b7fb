package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/travigo/fareharvest/pkg/api/routes"
	"github.com/travigo/fareharvest/pkg/database"
)

func NewApp(store database.FareStore) *fiber.App {
	// Prices are served as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	webApp.Get("version", routes.APIVersion)

	group := webApp.Group("/v0")

	routes.JourneysRouter(group.Group("/journeys"), store)
	routes.FaresRouter(group.Group("/fares"), store)

	return webApp
}

func SetupServer(listen string, store database.FareStore) error {
	return NewApp(store).Listen(listen)
}
