package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DMPlayer/core/playback"
	"DMPlayer/core/player"
	"DMPlayer/core/project"
	"DMPlayer/core/remote"
	"DMPlayer/logger"

	"github.com/spf13/cobra"
)

var (
	playAPI      string
	playToken    string
	playHeadless bool
	playSpeed    float64
	playSeed     int64
)

var playCmd = &cobra.Command{
	Use:   "play <projectId>",
	Short: "播放项目",
	Long: `从服务器加载项目并播放，到达切换点时自动切换到另一首音轨。
默认使用终端界面和声卡输出，--headless 使用虚拟时钟并逐行输出事件。`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{quietAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		api, token := cfg.PlayerAPIURL, cfg.PlayerToken
		if playAPI != "" {
			api = playAPI
		}
		if playToken != "" {
			token = playToken
		}
		client := remote.NewClient(api, token)

		proj, err := client.GetProject(ctx, args[0])
		if err != nil {
			return fmt.Errorf("加载项目失败: %w", err)
		}

		var (
			dev      playback.Device
			sim      *playback.SimDevice
			observer playback.Observer
			bridge   = &player.Bridge{}
		)
		if playHeadless {
			durations := make(map[string]float64, len(proj.Tracks))
			for _, t := range proj.Tracks {
				durations[client.TrackURL(proj.ID, t.ID)] = t.Duration
			}
			sim = playback.NewSimDevice(durations)
			dev = sim
			observer = player.NewLineObserver(os.Stdout, proj)
		} else {
			beepDev, err := playback.NewBeepDevice(client.Open)
			if err != nil {
				return fmt.Errorf("初始化音频输出失败: %w", err)
			}
			dev = beepDev
			observer = bridge
		}
		defer dev.Close()

		seed := playSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		loop := playback.NewLoop()
		eng := playback.NewEngine(dev,
			playback.WithLoop(loop),
			playback.WithLocator(client.TrackURL),
			playback.WithCueStore(client),
			playback.WithObserver(observer),
			playback.WithRand(rand.New(rand.NewSource(seed))),
		)

		loopCtx, stopLoop := context.WithCancel(context.Background())
		loopDone := make(chan struct{})
		go func() {
			defer close(loopDone)
			loop.Run(loopCtx)
		}()
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			loop.Do(closeCtx, eng.Close)
			stopLoop()
			<-loopDone
		}()

		if err := loop.Do(ctx, func() { eng.Open(proj) }); err != nil {
			return err
		}
		go followProject(ctx, client, proj.ID, loop, eng)

		logger.Info("Playing project",
			logger.String("projectId", proj.ID),
			logger.Int("tracks", len(proj.Tracks)),
			logger.Int("cues", len(proj.CuePoints)),
			logger.Bool("headless", playHeadless))

		if playHeadless {
			return player.RunHeadless(ctx, eng, loop, sim, playSpeed)
		}
		post := func(fn func()) { loop.Post(fn) }
		return player.Run(ctx, player.NewModel(eng, post, bridge, proj.ID, proj))
	},
}

// followProject 将服务器上的修改同步到播放引擎，连接断开时不重连
func followProject(ctx context.Context, client *remote.Client, projectID string, loop *playback.Loop, eng *playback.Engine) {
	err := client.Subscribe(ctx, projectID, func(ev project.Event) {
		loop.Post(func() {
			if err := remote.ApplyEvent(eng, ev); err != nil {
				logger.Warn("Failed to apply project event",
					logger.String("type", string(ev.Type)),
					logger.ErrorField(err))
			}
		})
	})
	if err != nil {
		logger.Warn("Project event stream closed", logger.ErrorField(err))
	}
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVar(&playAPI, "api", "", "服务器地址，默认使用 PLAYER_API_URL")
	playCmd.Flags().StringVar(&playToken, "token", "", "访问令牌，默认使用 PLAYER_TOKEN")
	playCmd.Flags().BoolVar(&playHeadless, "headless", false, "无界面模式，使用虚拟时钟")
	playCmd.Flags().Float64Var(&playSpeed, "speed", 1, "无界面模式下的播放倍速")
	playCmd.Flags().Int64Var(&playSeed, "seed", 0, "随机选曲种子，0 表示使用当前时间")
}
