// seed_systems.go loads decision system definitions from YAML files and creates them via the rcount API.
//
// Usage:
//
//	go run scripts/seed_systems.go -dir scripts/systems -api http://localhost:5000
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type systemFile struct {
	Name        string                 `yaml:"name" json:"name"`
	Description string                 `yaml:"description" json:"description,omitempty"`
	Definition  map[string]interface{} `yaml:"definition" json:"definition"`
}

func main() {
	dir := flag.String("dir", "scripts/systems", "directory of decision system YAML files")
	apiURL := flag.String("api", "http://localhost:5000", "rcount API base URL")
	clientID := flag.String("client", "seed", "X-Client-ID header value")
	dryRun := flag.Bool("dry-run", false, "print systems without posting")
	flag.Parse()

	paths, err := filepath.Glob(filepath.Join(*dir, "*.y*ml"))
	if err != nil {
		log.Fatalf("list %s: %v", *dir, err)
	}
	sort.Strings(paths)

	var systems []systemFile
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			log.Fatalf("read %s: %v", p, err)
		}
		var sf systemFile
		if err := yaml.Unmarshal(data, &sf); err != nil {
			log.Fatalf("parse %s: %v", p, err)
		}
		if strings.TrimSpace(sf.Name) == "" {
			sf.Name = strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		}
		systems = append(systems, sf)
	}

	log.Printf("parsed %d systems from %s", len(systems), *dir)

	if *dryRun {
		for i, sf := range systems {
			criteria, _ := sf.Definition["criteria"].([]interface{})
			rules, _ := sf.Definition["rules"].([]interface{})
			fmt.Printf("[%d] %s (criteria=%d, rules=%d)\n", i+1, sf.Name, len(criteria), len(rules))
		}
		return
	}

	client := &http.Client{}
	created, skipped := 0, 0
	for _, sf := range systems {
		body, err := json.Marshal(sf)
		if err != nil {
			log.Printf("skip %q: %v", sf.Name, err)
			skipped++
			continue
		}
		req, err := http.NewRequest("POST", *apiURL+"/api/fuzzy/systems", bytes.NewReader(body))
		if err != nil {
			log.Printf("skip %q: %v", sf.Name, err)
			skipped++
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Client-ID", *clientID)

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("skip %q: %v", sf.Name, err)
			skipped++
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			created++
		} else {
			log.Printf("skip %q: status %d", sf.Name, resp.StatusCode)
			skipped++
		}
	}

	log.Printf("done: %d created, %d skipped", created, skipped)
}
