package main

//go:generate swag init -g cmd/feedd/main.go -o docs

// @title           NIFTY Feed API
// @version         0.1.0
// @description     Market data ingestion and reconciliation for the NIFTY 50: reconciled quotes, candle history, signals, and an SSE stream.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
