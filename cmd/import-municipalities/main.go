// cmd/import-municipalities/main.go

// Imports the federal municipality registry export (semicolon CSV) into the
// municipalities collection.
//
// Usage:
//
//	go run ./cmd/import-municipalities -file registry.csv
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"prosignum/internal/importer"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	filePath := flag.String("file", "", "Path to the registry CSV export (required)")
	mongoURI := flag.String("uri", "", "MongoDB URI (defaults to MONGO_URI)")
	databaseName := flag.String("db", "", "Database name (defaults to DATABASE_NAME)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	if *filePath == "" {
		logrus.Fatal("-file is required")
	}
	if *mongoURI == "" {
		*mongoURI = getEnv("MONGO_URI", "mongodb://localhost:27017")
	}
	if *databaseName == "" {
		*databaseName = getEnv("DATABASE_NAME", "prosignum")
	}

	file, err := os.Open(*filePath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to open registry file")
	}
	defer file.Close()

	records, skipped, err := importer.ParseRegistry(file)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to parse registry file")
	}
	logrus.WithFields(logrus.Fields{
		"records": len(records),
		"skipped": skipped,
	}).Info("Registry file parsed")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(*mongoURI))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(ctx)

	if err := client.Ping(ctx, nil); err != nil {
		logrus.WithError(err).Fatal("Failed to ping MongoDB")
	}

	collection := client.Database(*databaseName).Collection("municipalities")
	result, err := importer.Upsert(ctx, collection, records)
	if err != nil {
		logrus.WithError(err).Fatal("Import failed")
	}

	logrus.WithFields(logrus.Fields{
		"created": result.Created,
		"updated": result.Updated,
		"skipped": skipped,
	}).Info("Import complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
