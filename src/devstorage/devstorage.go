package devstorage

import (
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/colloquyhq/colloquy/src/logging"
	"github.com/colloquyhq/colloquy/src/website"
	"github.com/spf13/cobra"
)

func init() {
	storageCommand := &cobra.Command{
		Use:   "devstorage [storage folder]",
		Short: "Run a local s3-compatible server that stores attachments in the filesystem",
		Run: func(cmd *cobra.Command, args []string) {
			targetFolder := "./tmp"
			if len(args) > 0 {
				targetFolder = args[0]
			}
			err := os.MkdirAll(targetFolder, fs.ModePerm)
			if err != nil {
				panic(err)
			}

			log := logging.GlobalLogger()
			handler := func(w http.ResponseWriter, r *http.Request) {
				bucket, key := bucketKey(r)
				log.Info().
					Str("method", r.Method).
					Str("bucket", bucket).
					Str("key", key).
					Msg("incoming storage request")

				switch r.Method {
				case http.MethodPut:
					body, err := io.ReadAll(r.Body)
					if err != nil {
						http.Error(w, err.Error(), http.StatusBadRequest)
						return
					}
					w.Header().Set("Location", fmt.Sprintf("/%s", bucket))
					err = os.MkdirAll(filepath.Join(targetFolder, bucket), fs.ModePerm)
					if err != nil {
						http.Error(w, err.Error(), http.StatusInternalServerError)
						return
					}
					if key != "" {
						err = os.WriteFile(filepath.Join(targetFolder, bucket, key), body, fs.ModePerm)
						if err != nil {
							http.Error(w, err.Error(), http.StatusInternalServerError)
							return
						}
					}
				case http.MethodGet, http.MethodHead:
					fileBytes, err := os.ReadFile(filepath.Join(targetFolder, bucket, key))
					if err != nil {
						http.NotFound(w, r)
						return
					}
					w.Write(fileBytes)
				default:
					http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
				}
			}

			addr := ":9012"
			log.Info().Str("addr", addr).Str("folder", targetFolder).Msg("Serving local attachment storage")
			http.HandleFunc("/", handler)
			if err := http.ListenAndServe(addr, nil); err != nil {
				log.Fatal().Err(err).Msg("local storage server failed")
			}
		},
	}

	website.ServiceCommand.AddCommand(storageCommand)
}

// Splits "/bucket/some/key" into the bucket and a flattened key. Keys are
// flattened because asset keys contain a slash but we want one file per asset.
func bucketKey(r *http.Request) (bucket string, key string) {
	slashIdx := strings.IndexByte(r.URL.Path[1:], '/')
	if slashIdx == -1 {
		return r.URL.Path[1:], ""
	}
	return r.URL.Path[1 : 1+slashIdx], strings.ReplaceAll(r.URL.Path[2+slashIdx:], "/", "~")
}
