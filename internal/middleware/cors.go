package middleware

import "github.com/go-chi/cors"

// CORS открывает API для фронтенда, запущенного локально на другом порту.
var CORS = cors.Handler(cors.Options{
	AllowedOrigins:   []string{"*"},
	AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	AllowedHeaders:   []string{"Content-Type"},
	ExposedHeaders:   []string{"Content-Disposition"},
	AllowCredentials: false,
	MaxAge:           300,
})
