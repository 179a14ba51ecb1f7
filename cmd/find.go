package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/victor/stormcatalog/internal/models"
	"github.com/victor/stormcatalog/internal/output"
)

// findOptions narrow the catalogued assets listed by find
type findOptions struct {
	NamePattern   string
	DirPattern    string
	HashPrefix    string
	MinSize       int64
	MaxSize       int64
	ModifiedSince *time.Time
	ModifiedUntil *time.Time
	Corrupted     bool
	Rotated       bool
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find catalogued images",
	Long: `Find catalogued images with support for various filters.
You can search by file name pattern, folder name pattern, fingerprint prefix,
size, modification date and flags.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := findOptions{}

		opts.NamePattern, _ = cmd.Flags().GetString("name")
		opts.DirPattern, _ = cmd.Flags().GetString("dir")
		opts.HashPrefix, _ = cmd.Flags().GetString("hash")
		opts.Corrupted, _ = cmd.Flags().GetBool("corrupted")
		opts.Rotated, _ = cmd.Flags().GetBool("rotated")
		sizeFilter, _ := cmd.Flags().GetString("size")
		sinceStr, _ := cmd.Flags().GetString("since")
		untilStr, _ := cmd.Flags().GetString("until")

		if sizeFilter != "" {
			minSize, maxSize, err := parseSizeFilter(sizeFilter)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing size filter: %v\n", err)
				os.Exit(1)
			}
			opts.MinSize = minSize
			opts.MaxSize = maxSize
		}

		now := time.Now()
		if sinceStr != "" {
			sinceTime, err := parseDate(sinceStr, now)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing --since date: %v\n", err)
				os.Exit(1)
			}
			opts.ModifiedSince = &sinceTime
		}
		if untilStr != "" {
			untilTime, err := parseDate(untilStr, now)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing --until date: %v\n", err)
				os.Exit(1)
			}
			opts.ModifiedUntil = &untilTime
		}

		if opts.ModifiedSince != nil && opts.ModifiedUntil != nil {
			if opts.ModifiedSince.After(*opts.ModifiedUntil) {
				fmt.Fprintf(os.Stderr, "Error: --since date must be before --until date\n")
				os.Exit(1)
			}
		}

		results, err := filterAssets(repo.GetCataloguedAssets(), opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding images: %v\n", err)
			os.Exit(1)
		}
		if len(results) == 0 {
			fmt.Println("No images found matching the criteria.")
			return
		}

		displayResultsTable(results)
	},
}

func init() {
	findCmd.Flags().StringP("name", "n", "", "Search by file name pattern (supports wildcards: *, ?)")
	findCmd.Flags().StringP("dir", "D", "", "Search by folder name pattern (supports wildcards: *, ?)")
	findCmd.Flags().StringP("hash", "c", "", "Search by fingerprint prefix")
	findCmd.Flags().StringP("size", "s", "", "Filter by size (e.g., >100M, <1G, =500K)")
	findCmd.Flags().String("since", "", "Show images modified since the given date/time (e.g., \"2 weeks ago\", \"2024-01-15\")")
	findCmd.Flags().String("until", "", "Show images modified until the given date/time (e.g., \"yesterday\", \"2024-01-20\")")
	findCmd.Flags().Bool("corrupted", false, "Show only corrupted images")
	findCmd.Flags().Bool("rotated", false, "Show only images rotated from their EXIF orientation")

	rootCmd.AddCommand(findCmd)
}

// filterAssets keeps the assets matching every set option. Name patterns
// are matched case-insensitively.
func filterAssets(assets []*models.Asset, opts findOptions) ([]*models.Asset, error) {
	namePattern := strings.ToLower(opts.NamePattern)
	dirPattern := strings.ToLower(opts.DirPattern)
	hashPrefix := strings.ToLower(opts.HashPrefix)

	var results []*models.Asset
	for _, asset := range assets {
		if namePattern != "" {
			ok, err := filepath.Match(namePattern, strings.ToLower(asset.FileName))
			if err != nil {
				return nil, fmt.Errorf("invalid name pattern %q: %w", opts.NamePattern, err)
			}
			if !ok {
				continue
			}
		}
		if dirPattern != "" {
			if asset.Folder == nil {
				continue
			}
			ok, err := filepath.Match(dirPattern, strings.ToLower(asset.Folder.Name()))
			if err != nil {
				return nil, fmt.Errorf("invalid dir pattern %q: %w", opts.DirPattern, err)
			}
			if !ok {
				continue
			}
		}
		if hashPrefix != "" && !strings.HasPrefix(asset.Hash, hashPrefix) {
			continue
		}
		size := asset.FileProperties.Size
		if opts.MinSize > 0 && size < opts.MinSize {
			continue
		}
		if opts.MaxSize > 0 && size > opts.MaxSize {
			continue
		}
		modified := asset.FileProperties.Modification
		if opts.ModifiedSince != nil && modified.Before(*opts.ModifiedSince) {
			continue
		}
		if opts.ModifiedUntil != nil && modified.After(*opts.ModifiedUntil) {
			continue
		}
		if opts.Corrupted && !asset.Metadata.Corrupted.IsTrue {
			continue
		}
		if opts.Rotated && !asset.Metadata.Rotated.IsTrue {
			continue
		}
		results = append(results, asset)
	}
	return results, nil
}

var (
	relativeDatePattern = regexp.MustCompile(`^(\d+)\s+(day|week|month|year)s?\s+ago$`)
	dateLayouts         = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}
)

// parseDate accepts "today", "yesterday", "N <unit>s ago" and a few absolute layouts
func parseDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	lower := strings.ToLower(value)

	switch lower {
	case "today":
		return now, nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	}

	if m := relativeDatePattern.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "day":
			return now.AddDate(0, 0, -n), nil
		case "week":
			return now.AddDate(0, 0, -7*n), nil
		case "month":
			return now.AddDate(0, -n, 0), nil
		default:
			return now.AddDate(-n, 0, 0), nil
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", value)
}

var (
	sizeFilterPattern = regexp.MustCompile(`^([<>]=?|=)\s*(\d+(?:\.\d+)?)\s*([KMGT]?)B?$`)
	sizeUnits         = map[string]int64{"": 1, "K": 1 << 10, "M": 1 << 20, "G": 1 << 30, "T": 1 << 40}
)

// parseSizeFilter turns ">100M", "<=1G" or "=500K" into an inclusive byte
// range. Zero means unbounded.
func parseSizeFilter(filter string) (minSize, maxSize int64, err error) {
	m := sizeFilterPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(filter)))
	if m == nil {
		return 0, 0, fmt.Errorf("invalid size format: %s (expected format: >100M, <1G, =500K)", filter)
	}

	value, _ := strconv.ParseFloat(m[2], 64)
	bytes := int64(value * float64(sizeUnits[m[3]]))

	switch m[1] {
	case ">":
		return bytes + 1, 0, nil
	case ">=":
		return bytes, 0, nil
	case "<":
		return 0, bytes - 1, nil
	case "<=":
		return 0, bytes, nil
	default:
		return bytes, bytes, nil
	}
}

func displayResultsTable(results []*models.Asset) {
	fmt.Printf("Found %d images\n\n", len(results))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PATH\tSIZE\tMODIFIED\tHASH")
	fmt.Fprintln(w, "----\t----\t--------\t----")

	for _, asset := range results {
		hash := asset.Hash
		if hash == "" {
			hash = "-"
		} else if len(hash) > 12 {
			hash = hash[:12] + "..."
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			asset.FullPath(),
			output.FormatBytes(asset.FileProperties.Size),
			asset.FileProperties.Modification.Format("2006-01-02 15:04:05"),
			hash,
		)
	}

	w.Flush()
}
