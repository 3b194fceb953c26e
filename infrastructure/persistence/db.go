package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"publish-pipeline/infrastructure/configuration"
	"publish-pipeline/infrastructure/logger"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func postgresDSN(cfg configuration.Db) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, orDefault(cfg.Port, "5432"), cfg.User, cfg.Password, cfg.Name)
}

func mysqlDSN(cfg configuration.Db) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, orDefault(cfg.Port, "3306"), cfg.Name)
}

func mongoURI(cfg configuration.Db) string {
	port := orDefault(cfg.Port, "27017")
	if cfg.User != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s", cfg.User, cfg.Password, cfg.Host, port)
	}
	return fmt.Sprintf("mongodb://%s:%s", cfg.Host, port)
}

func NewPostgreSQLDB(cfg configuration.Db) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresDSN(cfg))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.GetLogger().WithField("host", cfg.Host).Info("PostgreSQL connected")
	return db, nil
}

func NewMySQLGorm(cfg configuration.Db) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(mysqlDSN(cfg)), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func NewMongoDb(ctx context.Context, cfg configuration.Db) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(mongoURI(cfg)).SetConnectTimeout(5 * time.Second))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.GetLogger().WithField("host", cfg.Host).Info("MongoDB connected")
	return client, nil
}
