package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anoixa/pattern-vault/config"
	"github.com/anoixa/pattern-vault/database/models"
	"github.com/anoixa/pattern-vault/internal/app"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// migrateCmd 数据库迁移命令
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tools",
}

// migrateSchemaCmd 对配置中的数据库执行 AutoMigrate
var migrateSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create or update tables in the configured database",
	Run: func(cmd *cobra.Command, args []string) {
		config.InitConfig()
		container := app.NewContainer(config.Get())
		if err := container.InitDatabase(); err != nil {
			log.Fatalf("Schema migration failed: %v", err)
		}
		_ = container.Close()
		log.Println("Schema is up to date.")
	},
}

// migrateRunCmd 执行迁移命令
var migrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Copy all data from one database to another",
	Long: `Copy users, groups, memberships, pages, albums and photo records from source to target.

Examples:
  # Migrate from SQLite to PostgreSQL
  pattern-vault migrate run --from-sqlite ./data/pattern-vault.db --to-postgres "host=localhost user=postgres password=secret dbname=vault port=5432"

  # Replace rows that already exist in the target
  pattern-vault migrate run --from-sqlite ./data/pattern-vault.db --to-postgres "..." --on-conflict=overwrite`,
	Run: func(cmd *cobra.Command, args []string) {
		fromType, _ := cmd.Flags().GetString("from-type")
		toType, _ := cmd.Flags().GetString("to-type")
		fromDSN, _ := cmd.Flags().GetString("from-dsn")
		toDSN, _ := cmd.Flags().GetString("to-dsn")
		fromSQLite, _ := cmd.Flags().GetString("from-sqlite")
		toPostgres, _ := cmd.Flags().GetString("to-postgres")
		skipConfirm, _ := cmd.Flags().GetBool("yes")
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		onConflict, _ := cmd.Flags().GetString("on-conflict")

		if fromSQLite != "" {
			fromType, fromDSN = "sqlite", fromSQLite
		}
		if toPostgres != "" {
			toType, toDSN = "postgres", toPostgres
		}

		if err := runMigration(fromType, toType, fromDSN, toDSN, skipConfirm, batchSize, onConflict); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateSchemaCmd)
	migrateCmd.AddCommand(migrateRunCmd)

	migrateRunCmd.Flags().String("from-type", "", "Source database type (sqlite, postgres)")
	migrateRunCmd.Flags().String("to-type", "", "Target database type (sqlite, postgres)")
	migrateRunCmd.Flags().String("from-dsn", "", "Source database DSN/connection string")
	migrateRunCmd.Flags().String("to-dsn", "", "Target database DSN/connection string")
	migrateRunCmd.Flags().String("from-sqlite", "", "Source SQLite file path (shortcut)")
	migrateRunCmd.Flags().String("to-postgres", "", "Target PostgreSQL connection string (shortcut)")
	migrateRunCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	migrateRunCmd.Flags().Int("batch-size", 100, "Batch size for data migration")
	migrateRunCmd.Flags().String("on-conflict", "skip", "Conflict resolution strategy: skip (default), overwrite, error")
}

// tableCopy 单张表的复制结果
type tableCopy struct {
	table  string
	copied int64
}

// runMigration 执行数据库迁移
func runMigration(fromType, toType, fromDSN, toDSN string, skipConfirm bool, batchSize int, onConflict string) error {
	if onConflict != "skip" && onConflict != "overwrite" && onConflict != "error" {
		return fmt.Errorf("invalid on-conflict strategy: %s (must be skip, overwrite, or error)", onConflict)
	}
	if fromType == "" || toType == "" {
		return fmt.Errorf("both --from-type and --to-type are required")
	}
	if fromDSN == "" || toDSN == "" {
		return fmt.Errorf("both --from-dsn and --to-dsn (or shortcuts) are required")
	}
	if fromType == toType && fromDSN == toDSN {
		return fmt.Errorf("source and target databases are the same")
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	log.Printf("Migrating from %s to %s", fromType, toType)
	log.Printf("Source: %s", maskDSN(fromDSN))
	log.Printf("Target: %s", maskDSN(toDSN))
	log.Printf("Conflict strategy: %s", onConflict)

	sourceDB, err := openDatabase(fromType, fromDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer closeDatabase(sourceDB)

	targetDB, err := openDatabase(toType, toDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to target database: %w", err)
	}
	defer closeDatabase(targetDB)

	if !skipConfirm {
		fmt.Println("\nWarning: This will copy all data from the source into the target database.")
		fmt.Printf("Conflict resolution strategy: %s\n", onConflict)
		fmt.Print("Do you want to continue? [y/N]: ")
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Migration cancelled.")
			return nil
		}
	}

	log.Println("Migrating database schema...")
	if err := targetDB.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	ctx := context.Background()
	stats, err := migrateAll(ctx, sourceDB, targetDB, batchSize, onConflict)
	printMigrateStats(stats)
	if err != nil {
		return err
	}

	if toType == "postgres" || toType == "postgresql" {
		if err := resetSequences(ctx, targetDB); err != nil {
			return err
		}
	}

	log.Println("Migration completed successfully!")
	return nil
}

// migrateAll 按外键依赖顺序复制所有表
func migrateAll(ctx context.Context, sourceDB, targetDB *gorm.DB, batchSize int, onConflict string) ([]tableCopy, error) {
	steps := []func() (tableCopy, error){
		func() (tableCopy, error) {
			return copyTable[models.User](ctx, sourceDB, targetDB, batchSize, onConflict)
		},
		func() (tableCopy, error) {
			return copyTable[models.Group](ctx, sourceDB, targetDB, batchSize, onConflict)
		},
		func() (tableCopy, error) {
			return copyTable[models.GroupMembership](ctx, sourceDB, targetDB, batchSize, onConflict)
		},
		func() (tableCopy, error) {
			return copyTable[models.Page](ctx, sourceDB, targetDB, batchSize, onConflict)
		},
		func() (tableCopy, error) {
			return copyTable[models.Album](ctx, sourceDB, targetDB, batchSize, onConflict)
		},
		func() (tableCopy, error) {
			return copyTable[models.AlbumPhoto](ctx, sourceDB, targetDB, batchSize, onConflict)
		},
	}

	stats := make([]tableCopy, 0, len(steps))
	for _, step := range steps {
		s, err := step()
		stats = append(stats, s)
		if err != nil {
			return stats, fmt.Errorf("%s: %w", s.table, err)
		}
	}
	return stats, nil
}

// copyTable 按主键分批复制一张表
// skip 忽略已存在的主键，overwrite 覆盖，error 遇到冲突即中止
func copyTable[T any](ctx context.Context, sourceDB, targetDB *gorm.DB, batchSize int, onConflict string) (tableCopy, error) {
	var zero T
	stmt := &gorm.Statement{DB: targetDB}
	if err := stmt.Parse(&zero); err != nil {
		return tableCopy{}, err
	}
	result := tableCopy{table: stmt.Schema.Table}
	log.Printf("Migrating %s...", result.table)

	var rows []T
	err := sourceDB.WithContext(ctx).Model(&zero).Order("id ASC").FindInBatches(&rows, batchSize, func(tx *gorm.DB, batch int) error {
		insert := targetDB.WithContext(ctx)
		switch onConflict {
		case "skip":
			insert = insert.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true})
		case "overwrite":
			insert = insert.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true})
		}

		res := insert.Create(&rows)
		if res.Error != nil {
			return res.Error
		}
		result.copied += res.RowsAffected
		return nil
	}).Error
	if err != nil {
		return result, err
	}

	log.Printf("Migrated %d %s rows", result.copied, result.table)
	return result, nil
}

// resetSequences 显式写入主键后同步 PostgreSQL 自增序列
func resetSequences(ctx context.Context, db *gorm.DB) error {
	for _, model := range models.All() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return err
		}
		table := stmt.Schema.Table
		sql := fmt.Sprintf(`SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)`, table, table)
		if err := db.WithContext(ctx).Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to reset sequence for %s: %w", table, err)
		}
	}
	return nil
}

// openDatabase 打开数据库连接
func openDatabase(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch dbType {
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// maskDSN 隐藏敏感信息
func maskDSN(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:50] + "..."
	}
	return dsn
}

// printMigrateStats 打印迁移统计
func printMigrateStats(stats []tableCopy) {
	fmt.Println()
	fmt.Println("========================================")
	fmt.Println("       Migration Statistics")
	fmt.Println("========================================")
	for _, s := range stats {
		fmt.Printf("%-18s %d\n", s.table+":", s.copied)
	}
	fmt.Println("========================================")
}
