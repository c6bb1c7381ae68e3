package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sbuss/voteswap/internal/config"
	"github.com/sbuss/voteswap/internal/models"
	"github.com/sbuss/voteswap/internal/storage"
)

// stateRecord 是年鉴数据文件中一条州快照的形状。
// Updated is a date-only string; every record in one file should share it.
type stateRecord struct {
	Name             string `json:"name"`
	Updated          string `json:"updated"`
	Abbv             string `json:"abbv"`
	TippingPointRank *int   `json:"tippingPointRank"`
	SafeFor          string `json:"safeFor"`
	SafeRank         *int   `json:"safeRank"`
	Leans            string `json:"leans"`
	LeanRank         *int   `json:"leanRank"`
}

func main() {
	// 简单命令行参数解析
	if len(os.Args) < 2 {
		fmt.Println("使用方法:")
		fmt.Println("  ./almanac load <file.json> - 导入一批州快照")
		fmt.Println("  ./almanac show <name>      - 显示一个州的当前快照")
		fmt.Println("  ./almanac list-swing       - 列出摇摆州池")
		fmt.Println("  ./almanac list-safe        - 列出安全州池")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("无法迁移数据库表: %v", err)
	}

	stateRepo := storage.NewGormStateRepository(db)
	ctx := context.Background()

	// 执行指定的命令
	switch os.Args[1] {
	case "load":
		if len(os.Args) < 3 {
			log.Fatalf("需要指定数据文件")
		}
		loadStates(ctx, stateRepo, os.Args[2])

	case "show":
		if len(os.Args) < 3 {
			log.Fatalf("需要指定州名")
		}
		showState(ctx, stateRepo, os.Args[2])

	case "list-swing":
		pool, err := stateRepo.SwingStatePool(ctx)
		if err != nil {
			log.Fatalf("获取摇摆州池失败: %v", err)
		}
		printPool("摇摆州池 (按 tipping point 排名)", pool)

	case "list-safe":
		pool, err := stateRepo.SafeStatePool(ctx)
		if err != nil {
			log.Fatalf("获取安全州池失败: %v", err)
		}
		printPool("安全州池 (按 safe 排名)", pool)

	default:
		log.Fatalf("未知命令: %s", os.Args[1])
	}
}

func loadStates(ctx context.Context, repo storage.StateRepository, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("读取数据文件失败: %v", err)
	}
	var records []stateRecord
	if err := json.Unmarshal(data, &records); err != nil {
		log.Fatalf("解析数据文件失败: %v", err)
	}

	loaded := 0
	for _, rec := range records {
		state, err := toState(rec)
		if err != nil {
			log.Fatalf("记录 %q 无效: %v", rec.Name, err)
		}
		if err := repo.Create(ctx, state); err != nil {
			log.Fatalf("保存州 %q 失败: %v", rec.Name, err)
		}
		loaded++
	}
	fmt.Printf("已导入 %d 条州快照\n", loaded)
}

func toState(rec stateRecord) (*models.State, error) {
	if rec.Name == "" {
		return nil, fmt.Errorf("缺少州名")
	}
	updated, err := time.Parse("2006-01-02", rec.Updated)
	if err != nil {
		return nil, fmt.Errorf("updated 日期无效: %w", err)
	}

	state := &models.State{
		Name:             rec.Name,
		Updated:          updated,
		Abbv:             rec.Abbv,
		TippingPointRank: rankOrNone(rec.TippingPointRank),
		SafeFor:          models.CandidateNone,
		SafeRank:         rankOrNone(rec.SafeRank),
		Leans:            models.CandidateNone,
		LeanRank:         rankOrNone(rec.LeanRank),
	}
	if rec.SafeFor != "" {
		safeFor := models.Candidate(rec.SafeFor)
		if !safeFor.Valid() {
			return nil, fmt.Errorf("safeFor 候选人无效: %q", rec.SafeFor)
		}
		state.SafeFor = safeFor
	}
	if rec.Leans != "" {
		leans := models.Candidate(rec.Leans)
		if !leans.Valid() {
			return nil, fmt.Errorf("leans 候选人无效: %q", rec.Leans)
		}
		state.Leans = leans
	}
	return state, nil
}

// rankOrNone treats an absent rank as "not in this ordering".
func rankOrNone(rank *int) int {
	if rank == nil {
		return models.RankNone
	}
	return *rank
}

func showState(ctx context.Context, repo storage.StateRepository, name string) {
	state, err := repo.GetCurrent(ctx, name)
	if err != nil {
		log.Fatalf("查找州 %q 失败: %v", name, err)
	}

	fmt.Printf("州 %s (%s) 当前快照:\n", state.Name, state.Abbv)
	fmt.Println("--------------------------------------")
	fmt.Printf("数据日期: %s\n", state.Updated.Format("2006-01-02"))
	fmt.Printf("Tipping point 排名: %d\n", state.TippingPointRank)
	fmt.Printf("安全倾向: %s (排名 %d)\n", state.SafeFor, state.SafeRank)
	fmt.Printf("微弱倾向: %s (排名 %d)\n", state.Leans, state.LeanRank)
	if state.IsSwing() {
		fmt.Println("分类: 摇摆州")
	} else {
		fmt.Println("分类: 安全州")
	}
}

func printPool(title string, pool []models.StateRank) {
	fmt.Println(title + ":")
	fmt.Println("--------------------------------------")
	for i, entry := range pool {
		fmt.Printf("#%d %s (排名 %d)\n", i+1, entry.Name, entry.Rank)
	}
}
