package migration

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"

	"github.com/colloquyhq/colloquy/src/config"
	"github.com/colloquyhq/colloquy/src/cqdata"
	"github.com/colloquyhq/colloquy/src/db"
	"github.com/colloquyhq/colloquy/src/models"
	"github.com/colloquyhq/colloquy/src/utils"
	lorem "github.com/HandmadeNetwork/golorem"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
)

// Applies a cloned db to the local db.
// NOTE: The db role specified in the config must have the CREATEDB attribute! `ALTER ROLE colloquy WITH CREATEDB;`
func SeedFromFile(seedFile string) {
	file, err := os.Open(seedFile)
	if err != nil {
		panic(fmt.Errorf("couldn't open seed file %s: %w", seedFile, err))
	}
	file.Close()

	fmt.Println("Executing seed...")
	cmd := exec.Command("pg_restore",
		"--single-transaction",
		"--dbname", config.Config.Postgres.DSN(),
		seedFile,
	)
	fmt.Println("Running command:", cmd)
	if output, err := cmd.CombinedOutput(); err != nil {
		fmt.Print(string(output))
		panic(fmt.Errorf("failed to execute seed: %w", err))
	}

	fmt.Println("Done! You may want to migrate forward from here.")
	ListMigrations()
}

// Seeds the database with sample discussions for local dev.
func SampleSeed() {
	Migrate(LatestVersion())

	ctx := context.Background()
	conn := db.NewConnWithConfig(config.PostgresConfig{
		LogLevel: tracelog.LogLevelWarn,
	})
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		panic(err)
	}
	defer tx.Rollback(ctx)

	fmt.Println("Creating staff user...")
	admin := seedUser(ctx, tx, models.User{Username: "admin", IsStaff: true})

	fmt.Println("Creating normal users...")
	alice := seedUser(ctx, tx, models.User{Username: "alice", Name: "Alice"})
	bob := seedUser(ctx, tx, models.User{Username: "bob", Name: "Bob"})
	charlie := seedUser(ctx, tx, models.User{Username: "charlie", Name: "Charlie"})
	everyone := []*models.User{admin, alice, bob, charlie}

	fmt.Println("Creating an open discussion...")
	general := seedTopic(ctx, tx, "General chatter", nil, nil, false)
	seedConversation(ctx, tx, general, everyone, 8)

	fmt.Println("Creating a group-split discussion...")
	redGroup := seedGroup(ctx, tx, "red", alice, bob)
	blueGroup := seedGroup(ctx, tx, "blue", charlie)
	split := seedTopic(ctx, tx, "Breakout session", nil, nil, false)
	redSide := seedTopic(ctx, tx, "Breakout session (red)", &split.ID, &redGroup, false)
	blueSide := seedTopic(ctx, tx, "Breakout session (blue)", &split.ID, &blueGroup, false)
	seedConversation(ctx, tx, redSide, []*models.User{alice, bob}, 5)
	seedConversation(ctx, tx, blueSide, []*models.User{charlie, admin}, 4)

	fmt.Println("Creating an introduce-yourself discussion...")
	intros := seedTopic(ctx, tx, "Introduce yourself", nil, nil, true)
	seedConversation(ctx, tx, intros, []*models.User{alice, bob}, 3)

	err = tx.Commit(ctx)
	if err != nil {
		panic(err)
	}

	fmt.Println("Done!")
}

func seedUser(ctx context.Context, conn db.ConnOrTx, input models.User) *models.User {
	user, err := db.QueryOne[models.User](ctx, conn,
		`
		INSERT INTO cq_user (username, name, is_staff, date_joined)
		VALUES ($1, $2, $3, '2024-01-01T00:00:00Z')
		RETURNING $columns
		`,
		input.Username,
		utils.OrDefault(input.Name, input.Username),
		input.IsStaff,
	)
	if err != nil {
		panic(err)
	}

	return user
}

func seedGroup(ctx context.Context, conn db.ConnOrTx, name string, members ...*models.User) int {
	var groupID int
	err := conn.QueryRow(ctx,
		`INSERT INTO cq_group (name) VALUES ($1) RETURNING id`,
		name,
	).Scan(&groupID)
	if err != nil {
		panic(err)
	}

	for _, member := range members {
		_, err := conn.Exec(ctx,
			`INSERT INTO group_member (group_id, user_id) VALUES ($1, $2)`,
			groupID, member.ID,
		)
		if err != nil {
			panic(err)
		}
	}

	return groupID
}

func seedTopic(ctx context.Context, conn db.ConnOrTx, title string, parentID *int, groupID *int, requireInitialPost bool) *models.Topic {
	topic, err := db.QueryOne[models.Topic](ctx, conn,
		`
		INSERT INTO topic (parent_id, group_id, title, deleted, require_initial_post, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, NOW(), NOW())
		RETURNING $columns
		`,
		parentID, groupID, title, requireInitialPost,
	)
	if err != nil {
		panic(err)
	}

	return topic
}

// Fills a topic with root entries and nested replies. Entries go through
// cqdata.CreateEntry so the seeded data matches what the service writes.
func seedConversation(ctx context.Context, tx pgx.Tx, topic *models.Topic, authors []*models.User, numRoots int) {
	var entryIDs []int
	for i := 0; i < numRoots; i++ {
		author := authors[rand.Intn(len(authors))]
		rootID := cqdata.CreateEntry(ctx, tx, cqdata.CreateEntryInput{
			TopicID:  topic.ID,
			AuthorID: author.ID,
			Message:  lorem.Paragraph(1, 3),
		})
		entryIDs = append(entryIDs, rootID)

		numReplies := rand.Intn(4)
		parentID := rootID
		for j := 0; j < numReplies; j++ {
			replier := authors[rand.Intn(len(authors))]
			replyID := cqdata.CreateEntry(ctx, tx, cqdata.CreateEntryInput{
				TopicID:  topic.ID,
				ParentID: &parentID,
				AuthorID: replier.ID,
				Message:  lorem.Sentence(4, 20),
			})
			// sometimes thread deeper instead of replying to the root
			if randomBool() {
				parentID = replyID
			}
		}
	}

	// leave a few entries already read for the first author
	for _, entryID := range entryIDs[:len(entryIDs)/2] {
		_, err := tx.Exec(ctx,
			`
			INSERT INTO entry_read_state (entry_id, user_id, read, forced, marked_at)
			VALUES ($1, $2, TRUE, TRUE, NOW())
			`,
			entryID, authors[0].ID,
		)
		if err != nil {
			panic(err)
		}
	}
}

func randomBool() bool {
	return rand.Intn(2) == 1
}
