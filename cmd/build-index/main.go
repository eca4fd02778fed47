package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"legalrag-backend/config"
	"legalrag-backend/gateway"
	"legalrag-backend/ingest"
	"legalrag-backend/repository"
)

func main() {
	corpusDir := flag.String("corpus", "./corpus", "directory of .txt/.md documents to index")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()

	// Verify table exists
	var tableExists bool
	err = pool.QueryRow(ctx, "SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'legal_passages')").Scan(&tableExists)
	if err != nil {
		log.Fatalf("Failed to check table existence: %v", err)
	}
	if !tableExists {
		log.Fatal("legal_passages table does not exist. Please run: go run cmd/create-schema/main.go")
	}

	embedder := gateway.NewEmbeddingClient(cfg.GeminiAPIKey, cfg.EmbeddingEndpoint, cfg.EmbeddingModel, cfg.EmbeddingDimension)
	repo := repository.NewPassageRepository(pool, cfg.EmbeddingDimension)

	files, err := os.ReadDir(*corpusDir)
	if err != nil {
		log.Fatalf("Failed to read corpus directory: %v", err)
	}

	indexed := 0
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		filename := file.Name()
		ext := strings.ToLower(filepath.Ext(filename))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		log.Printf("📄 Processing: %s", filename)

		content, err := os.ReadFile(filepath.Join(*corpusDir, filename))
		if err != nil {
			log.Printf("   ❌ Error reading %s: %v", filename, err)
			continue
		}

		// Skip files already indexed
		existing, err := countForSource(ctx, pool, filename)
		if err != nil {
			log.Printf("   ⚠️  Error checking existing passages: %v", err)
		} else if existing > 0 {
			log.Printf("   ⏭️  Skipping (already indexed: %d passages)", existing)
			continue
		}

		chunks := ingest.Chunk(string(content), cfg.ChunkSize, cfg.ChunkOverlap)
		if len(chunks) == 0 {
			log.Printf("   ⚠️  No content to index, skipping")
			continue
		}
		log.Printf("   ✓ Generated %d chunks", len(chunks))

		caseName := caseNameFromFilename(filename)
		passages := make([]repository.IndexedPassage, 0, len(chunks))
		for i, chunk := range chunks {
			embedding, err := embedder.Embed(ctx, chunk, gateway.TaskTypeDocument)
			if err != nil {
				log.Printf("   ❌ Error embedding chunk %d: %v", i, err)
				passages = nil
				break
			}
			passages = append(passages, repository.IndexedPassage{
				ID:         uuid.New(),
				Text:       chunk,
				SourceFile: filename,
				CaseName:   caseName,
				ChunkIndex: i,
				Embedding:  embedding,
			})
			// Rate limiting
			time.Sleep(100 * time.Millisecond)
		}
		if passages == nil {
			continue
		}

		if err := repo.InsertBatch(ctx, passages); err != nil {
			log.Printf("   ❌ Error storing passages: %v", err)
			continue
		}

		log.Printf("   ✅ Indexed %s (%d passages)", filename, len(passages))
		indexed++
	}

	total, err := repo.Count(ctx)
	if err != nil {
		log.Fatalf("Failed to count passages: %v", err)
	}
	log.Printf("✅ Index build complete: %d documents this run, %d passages total", indexed, total)
}

func countForSource(ctx context.Context, pool *pgxpool.Pool, filename string) (int, error) {
	var count int
	err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM legal_passages WHERE source_file = $1", filename).Scan(&count)
	return count, err
}

// caseNameFromFilename turns "state_v_mehta.txt" into "state v mehta".
func caseNameFromFilename(filename string) *string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	name := strings.TrimSpace(strings.ReplaceAll(stem, "_", " "))
	if name == "" {
		return nil
	}
	return &name
}
